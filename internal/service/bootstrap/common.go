package bootstrap

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	domain "github.com/oshokin/pricebot-bootstrap/internal/domain/bootstrap"
)

const (
	// DefaultScriptMode is the permission of the written script.
	DefaultScriptMode os.FileMode = 0o755

	// executableBits are added by the mark-executable step.
	executableBits os.FileMode = 0o111

	// workDirMode is used when the work directory is created.
	workDirMode os.FileMode = 0o755

	// tempDirPattern names the download scratch directory.
	tempDirPattern = "pricebot-bootstrap-"
)

// fallbackScript is written in place of the script when the download fails.
// It is a placeholder, not a runnable Python program.
//
//go:embed fallback.txt
var fallbackScript []byte

var (
	errBootstrapAlreadyRunning = errors.New("the bootstrapper is already running")
	errSettingsNotInitialised  = errors.New("settings are not initialized")
	errNotRegularFile          = errors.New("script is not a regular file")
)

// FallbackScript returns a copy of the embedded fallback block.
func FallbackScript() []byte {
	return slices.Clone(fallbackScript)
}

// StepError reports which step of the sequence failed.
type StepError struct {
	// Step is the failed step.
	Step domain.Step
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}
