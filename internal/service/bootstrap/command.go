package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/pricebot-bootstrap/internal/config"
	domain "github.com/oshokin/pricebot-bootstrap/internal/domain/bootstrap"
	"github.com/oshokin/pricebot-bootstrap/internal/logger"
	"github.com/oshokin/pricebot-bootstrap/internal/repository/state"
	"github.com/oshokin/pricebot-bootstrap/internal/service/common"
	"github.com/oshokin/pricebot-bootstrap/internal/service/handoff"
)

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional path to a settings file.
	ConfigPath string
}

// HandoffFunc runs the final program. It does not return on success when
// the process image is replaced.
type HandoffFunc func(ctx context.Context, interpreter string, args []string) error

// dependencies are the side-effecting collaborators of a run.
type dependencies struct {
	commands CommandRunner
	fetcher  Fetcher
	handoff  HandoffFunc
	records  state.Repository
}

// runner holds the state of a single bootstrap execution.
// Callers go through Run.
type runner struct {
	cfg    *config.Config
	deps   dependencies
	record *domain.Record
	lock   *marker
}

// step binds a domain step to the method performing it.
type step struct {
	name domain.Step
	run  func(ctx context.Context) error
}

// Run loads the settings and executes the bootstrap sequence.
// On Unix a successful run never returns: the process becomes the interpreter.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "pricebot-bootstrap")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	return run(ctx, cfg, defaultDependencies(cfg))
}

// defaultDependencies wires the real process runner, fetcher, handoff and record store.
func defaultDependencies(cfg *config.Config) dependencies {
	return dependencies{
		commands: NewExecRunner(cfg.StepTimeout),
		fetcher:  NewScriptFetcher(FallbackScript()),
		handoff:  handoff.Exec,
		records:  state.NewFileRepository(cfg.StatePath()),
	}
}

func run(ctx context.Context, cfg *config.Config, deps dependencies) error {
	if cfg == nil {
		return errSettingsNotInitialised
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		ctx = logger.ToContext(ctx, logger.FromContext(ctx).WithOptions(logger.WithLevel(level)))
	}

	r, err := newRunner(ctx, cfg, deps)
	if err != nil {
		return err
	}

	defer r.lock.release(ctx)

	ctx = logger.WithKV(ctx, "run_id", r.record.RunID)

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Bootstrap failed", "error", err)
		return err
	}

	return nil
}

// newRunner claims the marker so only one bootstrap runs at a time.
func newRunner(ctx context.Context, cfg *config.Config, deps dependencies) (*runner, error) {
	lock, err := acquireMarker(ctx, cfg.LockFile)
	if err != nil {
		return nil, err
	}

	record := &domain.Record{
		RunID:      uuid.NewString(),
		SourceURL:  cfg.ScriptURL,
		ScriptPath: cfg.ScriptPath(),
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect the current user", "error", err)
	} else {
		record.Actor = actor
	}

	return &runner{
		cfg:    cfg,
		deps:   deps,
		record: record,
		lock:   lock,
	}, nil
}

// Run executes the sequence:
// 1) Update and upgrade host packages.
// 2) Install system packages.
// 3) Upgrade pip.
// 4) Install Python libraries.
// 5) Create and enter the work directory.
// 6) Fetch the script or write the fallback block.
// 7) Mark the script executable.
// 8) Hand the process over to the interpreter.
func (r *runner) Run(ctx context.Context) error {
	r.record.StartedAt = time.Now()

	logger.InfoKV(ctx, "Setting up PriceRobot", "work_dir", r.cfg.WorkDir, "source", r.cfg.ScriptURL)

	steps := []step{
		{domain.StepUpdateSystem, r.updateSystem},
		{domain.StepInstallPackages, r.installPackages},
		{domain.StepUpgradePip, r.upgradePip},
		{domain.StepInstallLibraries, r.installLibraries},
		{domain.StepPrepareWorkDir, r.prepareWorkDir},
		{domain.StepFetchScript, r.fetchScript},
		{domain.StepMarkExecutable, r.markExecutable},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: s.name, Err: err}
		}

		if r.skips(s.name) {
			logger.InfoKV(ctx, "Skipping step", "step", s.name)
			continue
		}

		logger.DebugKV(ctx, "Starting step", "step", s.name)

		if err := s.run(ctx); err != nil {
			return &StepError{Step: s.name, Err: err}
		}

		r.record.Complete(s.name)
	}

	if err := ctx.Err(); err != nil {
		return &StepError{Step: domain.StepHandoff, Err: err}
	}

	r.saveRecord(ctx)

	logger.InfoKV(ctx, "PriceRobot is ready", "script", r.cfg.ScriptPath(), "outcome", r.record.Outcome)

	// The marker must go before exec: deferred calls do not survive a process replacement.
	r.lock.release(ctx)

	if err := r.deps.handoff(ctx, r.cfg.Python, []string{r.cfg.ScriptPath()}); err != nil {
		return &StepError{Step: domain.StepHandoff, Err: err}
	}

	return nil
}

// skips reports whether the settings turn a step off.
func (r *runner) skips(name domain.Step) bool {
	switch name {
	case domain.StepUpdateSystem, domain.StepInstallPackages:
		return r.cfg.SkipSystemPackages
	case domain.StepUpgradePip, domain.StepInstallLibraries:
		return r.cfg.SkipPythonLibraries
	default:
		return false
	}
}

// updateSystem refreshes the package index and upgrades installed packages.
func (r *runner) updateSystem(ctx context.Context) error {
	if err := r.deps.commands.Run(ctx, r.cfg.PackageManager, "update", "-y"); err != nil {
		return fmt.Errorf("update package index: %w", err)
	}

	if err := r.deps.commands.Run(ctx, r.cfg.PackageManager, "upgrade", "-y"); err != nil {
		return fmt.Errorf("upgrade packages: %w", err)
	}

	return nil
}

// installPackages installs the system packages, latest available versions.
func (r *runner) installPackages(ctx context.Context) error {
	if len(r.cfg.SystemPackages) == 0 {
		logger.Info(ctx, "No system packages configured")
		return nil
	}

	args := append([]string{"install", "-y"}, r.cfg.SystemPackages...)

	return r.deps.commands.Run(ctx, r.cfg.PackageManager, args...)
}

// upgradePip upgrades the Python package installer itself.
func (r *runner) upgradePip(ctx context.Context) error {
	return r.deps.commands.Run(ctx, r.cfg.Pip, "install", "--upgrade", "pip")
}

// installLibraries installs the Python libraries the script imports.
func (r *runner) installLibraries(ctx context.Context) error {
	if len(r.cfg.PythonLibraries) == 0 {
		logger.Info(ctx, "No Python libraries configured")
		return nil
	}

	args := append([]string{"install"}, r.cfg.PythonLibraries...)

	return r.deps.commands.Run(ctx, r.cfg.Pip, args...)
}

// prepareWorkDir creates the work directory if absent and changes into it.
func (r *runner) prepareWorkDir(ctx context.Context) error {
	if err := os.MkdirAll(r.cfg.WorkDir, workDirMode); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	if err := os.Chdir(r.cfg.WorkDir); err != nil {
		return fmt.Errorf("enter work directory: %w", err)
	}

	logger.InfoKV(ctx, "Entered work directory", "path", r.cfg.WorkDir)

	return nil
}

// fetchScript downloads the script, or writes the fallback block when the download fails.
func (r *runner) fetchScript(ctx context.Context) error {
	result, err := r.deps.fetcher.Fetch(ctx, r.cfg.ScriptURL, r.cfg.ScriptPath())
	if err != nil {
		return err
	}

	r.record.Outcome = result.Outcome

	switch result.Outcome {
	case domain.OutcomeFallbackUsed:
		logger.WarnKV(ctx, "The fallback block is a placeholder, the interpreter will not be able to run it",
			"path", result.Path, "reason", result.Err)
	default:
		logger.InfoKV(ctx, "Script downloaded", "path", result.Path, "bytes", result.Size)
	}

	return nil
}

// markExecutable adds the executable bits to the script.
func (r *runner) markExecutable(ctx context.Context) error {
	path := r.cfg.ScriptPath()

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm() | executableBits
	if err = os.Chmod(path, mode); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Script marked executable", "path", path, "mode", mode.String())

	return nil
}

// saveRecord stores the run summary. A failure here is not a bootstrap failure.
func (r *runner) saveRecord(ctx context.Context) {
	r.record.FinishedAt = time.Now()

	if err := r.deps.records.Save(ctx, r.record.Clone()); err != nil {
		logger.WarnKV(ctx, "Unable to save the run record", "error", err)
	}
}
