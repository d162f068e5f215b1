package sge

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/nicholsn/opencga/internal/common"
)

// CommandRunner executes a scheduler binary and returns its stdout. The
// bridge never inspects stderr; a non-zero exit is an error.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs the scheduler binaries through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, common.NewInternalServerError(err, "error running %s", name)
	}
	return stdout.Bytes(), nil
}
