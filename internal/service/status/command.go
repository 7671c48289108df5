package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oshokin/pricebot-bootstrap/internal/config"
	domain "github.com/oshokin/pricebot-bootstrap/internal/domain/bootstrap"
	"github.com/oshokin/pricebot-bootstrap/internal/logger"
	"github.com/oshokin/pricebot-bootstrap/internal/repository/state"
)

// Options are inputs accepted by the status entry point.
type Options struct {
	// ConfigPath is the optional path to a settings file.
	ConfigPath string
	// Out receives the report. Defaults to stdout.
	Out io.Writer
}

// ErrNoRecord is returned when the bootstrap has never completed its fetch.
var ErrNoRecord = errors.New("no bootstrap run recorded")

// Run prints the last run record.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	repo := state.NewFileRepository(cfg.StatePath())
	logger.DebugKV(ctx, "Reading run record", "path", repo.Path())

	record, err := repo.Load(ctx)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("%s: %w", repo.Path(), ErrNoRecord)
		}

		return err
	}

	_, err = io.WriteString(out, Describe(record))

	return err
}

// Describe renders a record for humans.
func Describe(record *domain.Record) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "Run:      %s\n", record.RunID)

	if record.Actor != nil {
		fmt.Fprintf(&builder, "By:       %s@%s\n", record.Actor.Username, record.Actor.Hostname)
	}

	fmt.Fprintf(&builder, "Started:  %s\n", formatTime(record.StartedAt))
	fmt.Fprintf(&builder, "Finished: %s\n", formatTime(record.FinishedAt))
	fmt.Fprintf(&builder, "Script:   %s\n", record.ScriptPath)
	fmt.Fprintf(&builder, "Source:   %s\n", record.SourceURL)
	fmt.Fprintf(&builder, "Outcome:  %s\n", describeOutcome(record.Outcome))

	builder.WriteString("Steps:\n")

	for _, step := range domain.Steps() {
		mark := " "
		if record.Completed(step) {
			mark = "x"
		}

		fmt.Fprintf(&builder, "  [%s] %s\n", mark, step)
	}

	return builder.String()
}

func describeOutcome(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeFetched:
		return "script downloaded"
	case domain.OutcomeFallbackUsed:
		return "download failed, placeholder written"
	default:
		return "unknown"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format(time.RFC3339)
}
