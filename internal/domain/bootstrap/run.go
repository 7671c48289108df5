package bootstrap

import (
	"slices"
	"time"
)

// Step names one stage of the bootstrap sequence.
type Step string

// Steps of the bootstrap sequence, in execution order.
const (
	StepUpdateSystem     Step = "update-system"
	StepInstallPackages  Step = "install-packages"
	StepUpgradePip       Step = "upgrade-pip"
	StepInstallLibraries Step = "install-libraries"
	StepPrepareWorkDir   Step = "prepare-workdir"
	StepFetchScript      Step = "fetch-script"
	StepMarkExecutable   Step = "mark-executable"
	StepHandoff          Step = "handoff"
)

// Steps returns the full sequence in execution order.
func Steps() []Step {
	return []Step{
		StepUpdateSystem,
		StepInstallPackages,
		StepUpgradePip,
		StepInstallLibraries,
		StepPrepareWorkDir,
		StepFetchScript,
		StepMarkExecutable,
		StepHandoff,
	}
}

// Outcome is how the script file came to exist.
type Outcome string

const (
	// OutcomeUnknown is the zero value, before the fetch step ran.
	OutcomeUnknown Outcome = ""
	// OutcomeFetched means the remote bytes were written.
	OutcomeFetched Outcome = "fetched"
	// OutcomeFallbackUsed means the download failed and the embedded block was written.
	OutcomeFallbackUsed Outcome = "fallback_used"
)

// Actor identifies who ran the bootstrap.
type Actor struct {
	// Hostname is the machine name.
	Hostname string
	// Username is the system user.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Record summarises one bootstrap run. It is informational: nothing reads
// it back to skip steps.
type Record struct {
	// RunID is unique per run.
	RunID string
	// Actor is the host and user that ran the bootstrap.
	Actor *Actor
	// StartedAt is when the first step began.
	StartedAt time.Time
	// FinishedAt is when the record was written, right before the handoff.
	FinishedAt time.Time
	// Steps lists the completed steps in order.
	Steps []Step
	// Outcome tells whether the script was fetched or replaced by the fallback.
	Outcome Outcome
	// ScriptPath is where the script was written.
	ScriptPath string
	// SourceURL is where the script was fetched from.
	SourceURL string
}

// Complete appends a finished step.
func (r *Record) Complete(step Step) {
	r.Steps = append(r.Steps, step)
}

// Completed reports whether step has finished in this run.
func (r *Record) Completed(step Step) bool {
	return slices.Contains(r.Steps, step)
}

// Clone returns a copy of the record to avoid leaking internal references.
func (r *Record) Clone() *Record {
	cloned := *r
	cloned.Actor = r.Actor.Clone()
	cloned.Steps = slices.Clone(r.Steps)

	return &cloned
}
