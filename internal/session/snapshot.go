package session

import (
	"time"

	"github.com/mind-engage/hireflow/internal/exam"
	"github.com/mind-engage/hireflow/internal/proctor"
)

// Snapshot is everything the test page needs to render the session.
type Snapshot struct {
	ID         string    `json:"id"`
	CandidatID int64     `json:"candidat_id"`
	OffreID    int64     `json:"offre_id"`
	Stage      Stage     `json:"stage"`
	Load       LoadState `json:"load"`
	LoadError  string    `json:"load_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Question *exam.View `json:"question,omitempty"`
	Answered int        `json:"answered"`
	Total    int        `json:"total"`

	Timer     bool    `json:"timer"`
	Remaining float64 `json:"remaining_seconds,omitempty"`

	Guard   *proctor.State        `json:"guard,omitempty"`
	Summary []proctor.SummaryLine `json:"violation_summary,omitempty"`

	Submitting bool          `json:"submitting"`
	Submit     *SubmitResult `json:"submit,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		CandidatID: s.CandidatID,
		OffreID:    s.OffreID,
		Stage:      s.stage,
		Load:       s.load,
		CreatedAt:  s.CreatedAt,
		Timer:      s.countdown != nil,
		Submitting: s.submitting,
		Submit:     s.submit,
	}
	if s.loadErr != nil {
		snap.LoadError = s.loadErr.Error()
	}
	if s.ctrl != nil {
		snap.Answered = s.ctrl.Answered()
		snap.Total = s.ctrl.Len()
		if s.stage == StageQuestionnaire {
			v := s.ctrl.View()
			snap.Question = &v
		}
	}
	if s.countdown != nil {
		snap.Remaining = s.countdown.Remaining().Seconds()
	}
	if s.guard != nil {
		st := s.guard.State()
		snap.Guard = &st
		if st.Exceeded {
			snap.Summary = s.guard.Summary()
		}
	}
	return snap
}
