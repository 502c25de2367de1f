package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/exam"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/mind-engage/hireflow/internal/retry"
	"github.com/mind-engage/hireflow/internal/timer"
	"go.uber.org/zap"
)

var (
	ErrNotLoaded     = errors.New("session: questions not loaded")
	ErrNotRetryable  = errors.New("session: nothing to retry")
	ErrWrongStage    = errors.New("session: operation not allowed in this stage")
	ErrSubmitting    = errors.New("session: submission in progress")
	ErrGuardDisabled = errors.New("session: integrity guard disabled")
	ErrClosed        = errors.New("session: closed")
)

const auditTimeout = 5 * time.Second

// Session is one candidate's attempt at the test for one offer.
type Session struct {
	ID         string
	CandidatID int64
	OffreID    int64
	CreatedAt  time.Time

	flow Flow
	deps Deps
	log  *zap.Logger
	bus  *bus

	// ctx lives as long as the session; Close cancels it so in-flight
	// fetches and submissions stop.
	ctx    context.Context
	cancel context.CancelFunc

	guard     *proctor.Guard
	countdown *timer.Countdown

	mu         sync.Mutex
	stage      Stage
	load       LoadState
	loadErr    error
	ctrl       *exam.Controller
	submitting bool
	submit     *SubmitResult
	closed     bool
}

func New(id string, candidatID, offreID int64, flow Flow, deps Deps) *Session {
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		CandidatID: candidatID,
		OffreID:    offreID,
		CreatedAt:  deps.Clock(),
		flow:       flow,
		deps:       deps,
		log: deps.Log.With(
			zap.String("session_id", id),
			zap.Int64("candidat_id", candidatID),
			zap.Int64("offre_id", offreID)),
		bus:    newBus(),
		ctx:    ctx,
		cancel: cancel,
		stage:  StageQuestionnaire,
		load:   LoadIdle,
	}
	if flow.Guard {
		s.guard = proctor.NewGuard(flow.MaxViolations,
			proctor.WithClock(deps.Clock),
			proctor.OnViolation(s.onViolation))
	}
	if flow.Timer {
		opts := []timer.Option{
			timer.OnTick(s.onTick),
			timer.OnExpire(s.onExpire),
		}
		if deps.NewTicker != nil {
			opts = append(opts, timer.WithTicker(deps.NewTicker))
		}
		s.countdown = timer.New(flow.Duration, opts...)
	}
	return s
}

// Start begins the countdown when the flow has one.
func (s *Session) Start() error {
	if s.countdown == nil {
		return nil
	}
	return s.countdown.Start(s.ctx)
}

func (s *Session) Flow() Flow { return s.flow }

// Subscribe streams live events until the returned cancel func is called
// or the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.bus.subscribe()
}

// Load fetches the question set. It is a no-op while a fetch is in flight
// or once questions are loaded.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.load == LoadLoading || s.load == LoadLoaded {
		s.mu.Unlock()
		return nil
	}
	s.load = LoadLoading
	s.loadErr = nil
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	qs, err := s.deps.Source.Questions(ctx, s.CandidatID, s.OffreID)
	var ctrl *exam.Controller
	if err == nil {
		ctrl, err = exam.NewController(qs)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.load = LoadError
		s.loadErr = err
		stage := s.stage
		s.mu.Unlock()
		s.log.Warn("question load failed", zap.Error(err))
		s.audit("load_error", map[string]any{"error": err.Error()})
		s.publish(Event{Type: EventLoadError, Stage: stage, Error: err.Error()})
		return fmt.Errorf("load questions: %w", err)
	}
	s.ctrl = ctrl
	s.load = LoadLoaded
	stage := s.stage
	s.mu.Unlock()

	s.log.Info("questions loaded", zap.Int("count", ctrl.Len()))
	s.audit("loaded", map[string]any{"count": ctrl.Len()})
	s.publish(Event{Type: EventLoaded, Stage: stage})
	return nil
}

// Retry re-runs a failed load.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.load != LoadError {
		s.mu.Unlock()
		return ErrNotRetryable
	}
	s.load = LoadIdle
	s.mu.Unlock()
	return s.Load(ctx)
}

// answerableLocked checks the questionnaire accepts input.
func (s *Session) answerableLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.stage != StageQuestionnaire:
		return ErrWrongStage
	case s.load != LoadLoaded:
		return ErrNotLoaded
	case s.submitting:
		return ErrSubmitting
	}
	return nil
}

func (s *Session) Select(option int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.answerableLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	err := s.ctrl.Select(option)
	return s.snapshotLocked(), err
}

func (s *Session) Prev() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.answerableLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	s.ctrl.Prev()
	return s.snapshotLocked(), nil
}

func (s *Session) Goto(i int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.answerableLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	err := s.ctrl.Goto(i)
	return s.snapshotLocked(), err
}

// Next advances the questionnaire. On the last question it submits the
// score and moves to the next stage whether or not the submission worked.
func (s *Session) Next(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if err := s.answerableLocked(); err != nil {
		defer s.mu.Unlock()
		return s.snapshotLocked(), err
	}
	done, err := s.ctrl.Next()
	if err != nil || !done {
		defer s.mu.Unlock()
		return s.snapshotLocked(), err
	}
	s.submitting = true
	sub := backend.ScoreSubmission{
		CandidatID: s.CandidatID,
		OffreID:    s.OffreID,
		Score:      s.ctrl.Score(),
		Violations: s.violationsLocked(),
	}
	s.mu.Unlock()

	res := s.submitScore(ctx, sub)

	s.mu.Lock()
	s.submitting = false
	s.submit = &res
	moved := false
	if s.stage == StageQuestionnaire && !s.closed {
		moved = s.setStageLocked(s.flow.after())
	}
	result := s.resultLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.audit("score_submitted", res)
	s.publish(Event{Type: EventSubmitted, Stage: snap.Stage, Error: res.Err})
	s.saveResult(result)
	if moved {
		s.stageChanged(snap.Stage, "questionnaire submitted")
	}
	return snap, nil
}

// submitScore posts the score under the flow's retry policy. Failures are
// reported in the result, never returned.
func (s *Session) submitScore(ctx context.Context, sub backend.ScoreSubmission) SubmitResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	attempts, err := retry.Do(ctx, s.flow.Submit, func(ctx context.Context, attempt int) error {
		err := s.deps.Scores.StoreScore(ctx, sub)
		if err != nil {
			s.log.Warn("score submission failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	res := SubmitResult{Score: sub.Score, Attempts: attempts, OK: err == nil}
	if err != nil {
		res.Err = err.Error()
		s.log.Error("score not stored, continuing", zap.Float64("score", sub.Score), zap.Error(err))
	} else {
		s.log.Info("score stored", zap.Float64("score", sub.Score), zap.Int("attempts", attempts))
	}
	return res
}

// AnalysisDone is the image-analysis callback.
func (s *Session) AnalysisDone() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrClosed
	}
	if s.stage != StageImageAnalysis {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrWrongStage
	}
	s.setStageLocked(StageCompleted)
	result := s.resultLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveResult(result)
	s.stageChanged(StageCompleted, "image analysis done")
	return snap, nil
}

// ReportEvent feeds a browser event to the guard. It reports the recorded
// category, if any. Must not be called with s.mu held.
func (s *Session) ReportEvent(ev proctor.Event) (proctor.Category, bool, error) {
	if s.guard == nil {
		return "", false, ErrGuardDisabled
	}
	if err := s.acceptsGuardInput(); err != nil {
		return "", false, err
	}
	c, ok := s.guard.Observe(ev)
	return c, ok, nil
}

// Interact records the first user interaction; true means the page should
// request fullscreen now.
func (s *Session) Interact() (bool, error) {
	if s.guard == nil {
		return false, ErrGuardDisabled
	}
	if err := s.acceptsGuardInput(); err != nil {
		return false, err
	}
	return s.guard.Interact(), nil
}

func (s *Session) SetFullscreen(active bool) error {
	if s.guard == nil {
		return ErrGuardDisabled
	}
	if err := s.acceptsGuardInput(); err != nil {
		return err
	}
	s.guard.SetFullscreen(active)
	return nil
}

func (s *Session) acceptsGuardInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.stage.Terminal() {
		return ErrWrongStage
	}
	return nil
}

// onViolation runs on the guard's callback path, without s.mu held.
func (s *Session) onViolation(c proctor.Category, count int) {
	s.log.Warn("integrity violation", zap.String("category", string(c)), zap.Int("count", count))
	s.audit("violation", map[string]any{"category": c, "count": count})

	s.mu.Lock()
	stage := s.stage
	s.mu.Unlock()
	s.publish(Event{Type: EventViolation, Stage: stage, Category: c, Count: count, Warning: c.Warning()})

	if count >= s.guard.Max() {
		s.finish(StageTerminated, fmt.Sprintf("%s violations reached %d", c, count))
	}
}

func (s *Session) onTick(remaining time.Duration) {
	s.mu.Lock()
	stage := s.stage
	s.mu.Unlock()
	s.publish(Event{Type: EventTick, Stage: stage, Remaining: remaining.Seconds()})
}

func (s *Session) onExpire() {
	s.finish(StageTimedOut, "countdown expired")
}

// finish moves a non-terminal session to a terminal stage. It is a no-op
// for sessions that already ended.
func (s *Session) finish(to Stage, reason string) {
	s.mu.Lock()
	if s.closed || s.stage.Terminal() {
		s.mu.Unlock()
		return
	}
	s.setStageLocked(to)
	result := s.resultLocked()
	s.mu.Unlock()

	s.saveResult(result)
	s.stageChanged(to, reason)
}

// setStageLocked changes the stage and releases the countdown and guard
// once the stage is terminal.
func (s *Session) setStageLocked(to Stage) bool {
	if s.stage == to {
		return false
	}
	s.stage = to
	if to.Terminal() {
		if s.countdown != nil {
			s.countdown.Stop()
		}
		if s.guard != nil {
			s.guard.Release()
		}
	}
	return true
}

func (s *Session) stageChanged(to Stage, reason string) {
	s.log.Info("stage changed", zap.String("stage", string(to)), zap.String("reason", reason))
	s.audit("stage", map[string]any{"stage": to, "reason": reason})
	s.publish(Event{Type: EventStage, Stage: to})
}

func (s *Session) violationsLocked() map[string]int {
	if s.guard == nil {
		return nil
	}
	return s.guard.CountsByName()
}

func (s *Session) resultLocked() Result {
	r := Result{
		SessionID:  s.ID,
		CandidatID: s.CandidatID,
		OffreID:    s.OffreID,
		Stage:      s.stage,
		Violations: s.violationsLocked(),
		UpdatedAt:  s.deps.Clock(),
	}
	if s.ctrl != nil {
		r.Score = s.ctrl.Score()
		r.Answered = s.ctrl.Answered()
		r.Total = s.ctrl.Len()
	}
	if s.submit != nil {
		r.Submitted = s.submit.OK
		r.Attempts = s.submit.Attempts
		r.Score = s.submit.Score
	}
	return r
}

func (s *Session) saveResult(r Result) {
	if s.deps.Results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.deps.Results.SaveResult(ctx, r); err != nil {
		s.log.Error("save result", zap.Error(err))
	}
}

func (s *Session) audit(kind string, data any) {
	if s.deps.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.deps.Recorder.Record(ctx, s.ID, kind, data); err != nil {
		s.log.Error("audit", zap.String("kind", kind), zap.Error(err))
	}
}

func (s *Session) publish(ev Event) {
	ev.SessionID = s.ID
	ev.At = s.deps.Clock()
	s.bus.publish(ev)
}

// Close ends the session: in-flight work is cancelled, the countdown is
// stopped and subscribers are released. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.countdown != nil {
		s.countdown.Stop()
	}
	if s.guard != nil {
		s.guard.Release()
	}
	stage := s.stage
	s.mu.Unlock()

	s.cancel()
	s.publish(Event{Type: EventClosed, Stage: stage})
	s.bus.close()
	s.log.Debug("session closed")
}

// Done is closed once the countdown goroutine, if any, has exited.
func (s *Session) Done() <-chan struct{} {
	if s.countdown == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.countdown.Done()
}

func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Guard exposes the integrity guard; nil when the flow disables it.
func (s *Session) Guard() *proctor.Guard { return s.guard }
