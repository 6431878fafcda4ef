package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type gitCommandExecutor interface {
	execute(command string, args ...string) ([]byte, error)
}

type realGitExecutor struct {
	ctx context.Context
	dir string
}

func newRealGitExecutor(ctx context.Context, dir string) *realGitExecutor {
	return &realGitExecutor{ctx: ctx, dir: dir}
}

func (e *realGitExecutor) execute(command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(e.ctx, command, args...)
	cmd.Dir = e.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w\n%s", command, strings.Join(args, " "), err, stderr.String())
	}
	return output, nil
}
