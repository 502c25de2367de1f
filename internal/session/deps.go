package session

import (
	"context"
	"time"

	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/exam"
	"github.com/mind-engage/hireflow/internal/timer"
	"go.uber.org/zap"
)

// Submitter delivers final scores. *backend.Client satisfies it.
type Submitter interface {
	StoreScore(ctx context.Context, s backend.ScoreSubmission) error
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, sessionID, kind string, data any) error
}

// Result is the local record of how an attempt ended.
type Result struct {
	SessionID  string         `json:"session_id"`
	CandidatID int64          `json:"candidat_id"`
	OffreID    int64          `json:"offre_id"`
	Stage      Stage          `json:"stage"`
	Score      float64        `json:"score"`
	Answered   int            `json:"answered"`
	Total      int            `json:"total"`
	Submitted  bool           `json:"submitted"`
	Attempts   int            `json:"attempts"`
	Violations map[string]int `json:"violations,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ResultStore upserts results by session id.
type ResultStore interface {
	SaveResult(ctx context.Context, r Result) error
}

// SubmitResult describes the outcome of the score submission.
type SubmitResult struct {
	Score    float64 `json:"score"`
	Attempts int     `json:"attempts"`
	OK       bool    `json:"ok"`
	Err      string  `json:"error,omitempty"`
}

// Deps are the collaborators shared by all sessions. Only Source and Scores
// are required.
type Deps struct {
	Source   exam.Source
	Scores   Submitter
	Recorder Recorder
	Results  ResultStore
	Log      *zap.Logger

	Clock     func() time.Time
	NewTicker func(time.Duration) timer.Ticker
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}
