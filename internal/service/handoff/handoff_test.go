package handoff

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExecRequiresInterpreter rejects an empty interpreter name.
func TestExecRequiresInterpreter(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Exec(context.Background(), "", nil), ErrInterpreterRequired)
}

// TestExecUnknownInterpreter fails before touching the process when the binary is missing.
func TestExecUnknownInterpreter(t *testing.T) {
	t.Parallel()

	err := Exec(context.Background(), "pricebot-no-such-interpreter", []string{"robot.py"})
	require.ErrorIs(t, err, exec.ErrNotFound)
}
