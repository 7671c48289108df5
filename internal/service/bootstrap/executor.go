package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/pricebot-bootstrap/internal/logger"
)

// CommandRunner runs an external program to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs attached to the terminal, so the operator sees
// whatever the package managers print.
type ExecRunner struct {
	// Stdin, Stdout and Stderr are handed to the child process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Timeout bounds a single command. Zero means no timeout.
	Timeout time.Duration
}

// NewExecRunner returns a runner wired to the process standard streams.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Timeout: timeout,
	}
}

// Run starts name with args and waits for it to exit.
// A non-zero exit is returned as a wrapped *exec.ExitError.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	commandLine := strings.Join(append([]string{name}, args...), " ")
	logger.InfoKV(ctx, "Running command", "command", commandLine)

	//nolint:gosec // G204: commands and arguments come from the bootstrap settings.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	started := time.Now()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", commandLine, err)
	}

	logger.DebugKV(ctx, "Command finished", "command", commandLine, "duration", time.Since(started))

	return nil
}
