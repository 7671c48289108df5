package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"

	"github.com/oshokin/pricebot-bootstrap/internal/logger"
)

// marker is a PID file that keeps two bootstraps from running at once.
type marker struct {
	path string
}

// acquireMarker claims path for the current process.
func acquireMarker(ctx context.Context, path string) (*marker, error) {
	if isBootstrapRunningNow(ctx, path) {
		return nil, errBootstrapAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(path), workDirMode); err != nil {
		return nil, fmt.Errorf("create marker directory: %w", err)
	}

	return claimMarker(ctx, path)
}

// claimMarker creates the marker with our PID, failing if it already exists.
func claimMarker(ctx context.Context, path string) (*marker, error) {
	// A marker created by another run since the liveness check wins.
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errBootstrapAlreadyRunning
		}

		return nil, fmt.Errorf("create marker: %w", err)
	}

	lock := &marker{path: path}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		lock.release(ctx)

		return nil, fmt.Errorf("write marker: %w", err)
	}

	return lock, nil
}

// release removes the marker. It is safe to call more than once.
func (m *marker) release(ctx context.Context) {
	if m == nil {
		return
	}

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove the bootstrap marker", "path", m.path, "error", err)
	}
}

// isBootstrapRunningNow checks the marker at path and clears it if the
// process that wrote it is gone.
func isBootstrapRunningNow(ctx context.Context, path string) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug(ctx, "Bootstrap marker not found, continuing")
			return false
		}

		logger.WarnKV(ctx, "Unable to read the bootstrap marker", "path", path, "error", err)

		return true
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err == nil && pid != os.Getpid() {
		var process ps.Process

		process, err = ps.FindProcess(pid)
		if err != nil {
			logger.WarnKV(ctx, "Unable to check the marker owner", "pid", pid, "error", err)
			return true
		}

		if process != nil {
			logger.InfoKV(ctx, "Another bootstrap is running",
				"pid", pid, "executable", process.Executable())

			return true
		}
	}

	logger.InfoKV(ctx, "The bootstrap marker is stale, removing it", "path", path)

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return true
	}

	return false
}
