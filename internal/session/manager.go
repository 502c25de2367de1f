package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("session: not found")
	// ErrEnded is returned by Create for a pair whose test already reached
	// a terminal stage in this process.
	ErrEnded = errors.New("session: test already ended for this candidate and offer")
)

type pairKey struct{ candidat, offre int64 }

// Manager owns the live sessions of this process. A session that reaches a
// terminal stage stays readable for Flow.Retention and is then evicted; its
// pair is remembered so the test cannot be restarted.
type Manager struct {
	flow Flow
	deps Deps
	log  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	byPair   map[pairKey]string
	ended    map[pairKey]Stage

	watchers sync.WaitGroup
}

func NewManager(flow Flow, deps Deps) *Manager {
	deps = deps.withDefaults()
	return &Manager{
		flow:     flow,
		deps:     deps,
		log:      deps.Log.Named("session"),
		sessions: make(map[string]*Session),
		byPair:   make(map[pairKey]string),
		ended:    make(map[pairKey]Stage),
	}
}

func (m *Manager) Flow() Flow { return m.flow }

// Create returns the pair's live session, or registers a new one, starts its
// countdown and loads the questions. A failed load still returns the
// session, in the error load state, so the candidate can retry.
func (m *Manager) Create(ctx context.Context, candidatID, offreID int64) (*Session, error) {
	key := pairKey{candidatID, offreID}

	m.mu.Lock()
	if stage, ok := m.ended[key]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%s)", ErrEnded, stage)
	}
	if id, ok := m.byPair[key]; ok {
		s := m.sessions[id]
		m.mu.Unlock()
		return s, nil
	}
	deps := m.deps
	deps.Log = m.log
	s := New(uuid.NewString(), candidatID, offreID, m.flow, deps)
	m.sessions[s.ID] = s
	m.byPair[key] = s.ID
	events, unsubscribe := s.Subscribe()
	m.watchers.Add(1)
	m.mu.Unlock()

	go m.watch(s, events, unsubscribe)

	if err := s.Start(); err != nil {
		m.Close(s.ID)
		return nil, err
	}
	s.audit("created", map[string]any{"candidat_id": candidatID, "offre_id": offreID})
	m.log.Info("session created",
		zap.String("session_id", s.ID),
		zap.Int64("candidat_id", candidatID),
		zap.Int64("offre_id", offreID))

	return s, s.Load(ctx)
}

// watch evicts s once it has sat in a terminal stage for the retention
// period. It returns early when the session is closed.
func (m *Manager) watch(s *Session, events <-chan Event, unsubscribe func()) {
	defer m.watchers.Done()
	defer unsubscribe()

	terminal := false
	for range events {
		if s.Stage().Terminal() {
			terminal = true
			break
		}
	}
	if !terminal {
		return
	}

	t := time.NewTimer(m.flow.Retention)
	defer t.Stop()
	select {
	case <-t.C:
		if m.remove(s) {
			s.Close()
			m.log.Info("session evicted",
				zap.String("session_id", s.ID),
				zap.String("stage", string(s.Stage())))
		}
	case <-s.ctx.Done():
	}
}

// remove drops s from the registry. A terminal stage marks the pair ended.
func (m *Manager) remove(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ID] != s {
		return false
	}
	delete(m.sessions, s.ID)
	key := pairKey{s.CandidatID, s.OffreID}
	if m.byPair[key] == s.ID {
		delete(m.byPair, key)
	}
	if stage := s.Stage(); stage.Terminal() {
		m.ended[key] = stage
	}
	return true
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close removes and closes a session.
func (m *Manager) Close(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || !m.remove(s) {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// List returns snapshots of all live sessions, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(all))
	for _, s := range all {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Shutdown closes every session and waits for their countdowns and
// watchers to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.byPair = make(map[pairKey]string)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		m.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
