package git

import (
	"context"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// Repo is a git repository holding one or more packages.
type Repo interface {
	// Root returns the absolute path of the working tree.
	Root() string
	// OriginURL returns the first URL of the "origin" remote, or "" if there is none.
	OriginURL() string
	// CurrentBranch returns the checked out branch, or "" for a detached HEAD.
	CurrentBranch() string
	// LastCommitBefore returns the newest commit made until the given date.
	LastCommitBefore(since string) (string, error)
	// TagAt returns the most recent tag reachable from commit.
	TagAt(commit string) (string, error)
	// ChangelogAdditions returns the lines inserted into file since oldVersion,
	// each carrying InsertMarker. dir is the package directory the file lives in.
	ChangelogAdditions(dir string, oldVersion string, file string) (string, error)
}

type Repository struct {
	root        string
	repo        *gogit.Repository
	newExecutor func(dir string) gitCommandExecutor
}

// Open finds the repository enclosing path, walking up parent directories.
func Open(ctx context.Context, path string) (Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree for %s: %w", path, err)
	}
	root, err := filepath.Abs(worktree.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	return &Repository{
		root: root,
		repo: repo,
		newExecutor: func(dir string) gitCommandExecutor {
			return newRealGitExecutor(ctx, dir)
		},
	}, nil
}

func (r *Repository) Root() string {
	return r.root
}

func (r *Repository) OriginURL() string {
	if r.repo == nil {
		return ""
	}
	remote, err := r.repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

func (r *Repository) CurrentBranch() string {
	if r.repo == nil {
		return ""
	}
	head, err := r.repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

func (r *Repository) LastCommitBefore(since string) (string, error) {
	return lastCommitBefore(r.newExecutor(r.root), since)
}

func (r *Repository) TagAt(commit string) (string, error) {
	return tagAt(r.newExecutor(r.root), commit)
}

func (r *Repository) ChangelogAdditions(dir string, oldVersion string, file string) (string, error) {
	return changelogAdditions(r.newExecutor(dir), oldVersion, file)
}
