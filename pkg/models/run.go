package models

import (
	"time"

	"github.com/google/uuid"
)

// BuildStatus describes the outcome of a single model build.
type BuildStatus string

const (
	BuildSuccess BuildStatus = "success"
	BuildFailed  BuildStatus = "failed"
	BuildSkipped BuildStatus = "skipped"
)

// RunStatus is the aggregate outcome of a build or test run.
type RunStatus string

const (
	RunPass  RunStatus = "pass"
	RunWarn  RunStatus = "warn"
	RunError RunStatus = "error"
)

// ModelResult is the outcome of building one model.
type ModelResult struct {
	Model    string
	Status   BuildStatus
	Err      error
	Duration time.Duration
	Rows     int
}

// RunSummary enumerates every model's build status for one run.
type RunSummary struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Models     []ModelResult
}

// Status returns error if any model failed, otherwise pass.
func (s *RunSummary) Status() RunStatus {
	for _, m := range s.Models {
		if m.Status == BuildFailed {
			return RunError
		}
	}
	return RunPass
}

// FreshnessState classifies how stale a source is.
type FreshnessState string

const (
	FreshnessPass  FreshnessState = "pass"
	FreshnessWarn  FreshnessState = "warn"
	FreshnessError FreshnessState = "error"
)

// FreshnessResult is the outcome of checking one source's staleness.
type FreshnessResult struct {
	Source    string
	State     FreshnessState
	MaxLoaded time.Time
	Staleness time.Duration
	Err       error
}
