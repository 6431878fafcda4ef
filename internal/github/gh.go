package gh

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-github/v84/github"
)

// Client answers the repository questions the report needs from GitHub.
type Client interface {
	SetInfoBuffer(writer io.Writer)
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

type GHClient struct {
	client     *github.Client
	infoBuffer io.Writer
	branches   map[string]string
}

// NewClient returns a client authenticated with token. An empty token makes
// unauthenticated requests, which GitHub rate limits aggressively.
func NewClient(token string) Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GHClient{
		client:     client,
		infoBuffer: io.Discard,
		branches:   make(map[string]string),
	}
}

func (gh *GHClient) SetInfoBuffer(writer io.Writer) {
	gh.infoBuffer = writer
}

// DefaultBranch returns the default branch of owner/repo. Results are cached
// for the lifetime of the client.
func (gh *GHClient) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	key := owner + "/" + repo
	if branch, ok := gh.branches[key]; ok {
		return branch, nil
	}
	_, _ = fmt.Fprintf(gh.infoBuffer, "Fetching default branch for %s\n", key)
	repository, res, err := gh.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("fetching repository %s: %w", key, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	branch := repository.GetDefaultBranch()
	if branch == "" {
		return "", fmt.Errorf("repository %s has no default branch", key)
	}
	gh.branches[key] = branch
	return branch, nil
}

// ParseRemote extracts owner and repository name from a GitHub remote URL in
// https or ssh form. ok is false for remotes hosted elsewhere.
func ParseRemote(remote string) (owner string, repo string, ok bool) {
	var path string
	switch {
	case strings.HasPrefix(remote, "https://github.com/"):
		path = strings.TrimPrefix(remote, "https://github.com/")
	case strings.HasPrefix(remote, "git@github.com:"):
		path = strings.TrimPrefix(remote, "git@github.com:")
	case strings.HasPrefix(remote, "ssh://git@github.com/"):
		path = strings.TrimPrefix(remote, "ssh://git@github.com/")
	default:
		return "", "", false
	}
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
