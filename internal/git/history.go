package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCommit is returned when a repository has no commit before the requested date.
	ErrNoCommit = errors.New("no commit before date")
	// ErrNoTag is returned when no tag is reachable from the requested commit.
	ErrNoTag = errors.New("no release tag")
)

// lastCommitBefore returns the hash of the newest commit made until since.
func lastCommitBefore(executor gitCommandExecutor, since string) (string, error) {
	output, err := executor.execute("git", "log", "--pretty=oneline", "-1", "--until="+since)
	if err != nil {
		return "", fmt.Errorf("Log Error: %w", err)
	}
	fields := strings.Fields(string(output))
	if len(fields) == 0 {
		return "", ErrNoCommit
	}
	return fields[0], nil
}

// tagAt returns the most recent tag reachable from commit.
func tagAt(executor gitCommandExecutor, commit string) (string, error) {
	output, err := executor.execute("git", "describe", "--tags", "--abbrev=0", commit)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoTag, err)
	}
	tag := strings.TrimSpace(string(output))
	if tag == "" {
		return "", ErrNoTag
	}
	return tag, nil
}
