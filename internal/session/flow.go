package session

import (
	"time"

	"github.com/mind-engage/hireflow/internal/config"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/mind-engage/hireflow/internal/retry"
	"github.com/mind-engage/hireflow/internal/timer"
)

// Flow selects which parts of the test flow are active.
type Flow struct {
	Timer         bool
	Guard         bool
	ImageStage    bool
	Duration      time.Duration
	MaxViolations int
	Submit        retry.Policy
	// Retention is how long an ended session stays readable before the
	// manager evicts it.
	Retention     time.Duration
}

const DefaultRetention = 5 * time.Minute

func DefaultFlow() Flow {
	return Flow{
		Timer:         true,
		Guard:         true,
		ImageStage:    true,
		Duration:      timer.DefaultDuration,
		MaxViolations: proctor.DefaultMaxViolations,
		Submit:        retry.ScorePolicy(),
		Retention:     DefaultRetention,
	}
}

// FlowFromConfig builds a Flow from configuration. Zero durations and
// limits fall back to the defaults.
func FlowFromConfig(f config.Flow, attempts int, delay time.Duration) Flow {
	out := DefaultFlow()
	out.Timer = f.Timer
	out.Guard = f.Guard
	out.ImageStage = f.ImageStage
	if f.Duration > 0 {
		out.Duration = f.Duration
	}
	if f.MaxViolations > 0 {
		out.MaxViolations = f.MaxViolations
	}
	if f.Retention > 0 {
		out.Retention = f.Retention
	}
	if attempts > 0 {
		out.Submit.MaxAttempts = attempts
	}
	if delay > 0 {
		out.Submit.Backoff = retry.Fixed(delay)
	}
	return out
}

// after returns the stage that follows a submitted questionnaire.
func (f Flow) after() Stage {
	if f.ImageStage {
		return StageImageAnalysis
	}
	return StageCompleted
}
