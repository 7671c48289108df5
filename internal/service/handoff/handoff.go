package handoff

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
)

// ErrInterpreterRequired is returned when no interpreter is given.
var ErrInterpreterRequired = errors.New("interpreter must be provided")

// Exec hands the terminal over to interpreter running args.
//
// On Unix-like systems the current process image is replaced, so Exec only
// returns on failure. On Windows there is no exec(2); the interpreter runs as
// a child attached to the same console and its exit status is returned.
func Exec(ctx context.Context, interpreter string, args []string) error {
	if interpreter == "" {
		return ErrInterpreterRequired
	}

	path, err := exec.LookPath(interpreter)
	if err != nil {
		return fmt.Errorf("look up interpreter %s: %w", interpreter, err)
	}

	osName := strings.ToLower(runtime.GOOS)
	if strings.Contains(osName, "windows") {
		cmd := exec.CommandContext(ctx, path, args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		return cmd.Run()
	}

	argv := append([]string{interpreter}, args...)

	//nolint:gosec // G204: the interpreter and script path come from the bootstrap settings.
	if err = syscall.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}

	return nil
}
