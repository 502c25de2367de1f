package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/hireflow/internal/config"
	"github.com/mind-engage/hireflow/internal/exam"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFlow(withTimer, guard, image bool, d time.Duration, max int) config.Flow {
	return config.Flow{Timer: withTimer, Guard: guard, ImageStage: image, Duration: d, MaxViolations: max}
}

func newManager(src exam.Source) (*Manager, *fakeScores) {
	scores := &fakeScores{}
	m := NewManager(flow(nil), Deps{Source: src, Scores: scores})
	return m, scores
}

func TestManager_CreateGetClose(t *testing.T) {
	m, _ := newManager(staticSource(questions(5, 4)))

	s, err := m.Create(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, LoadLoaded, s.Snapshot().Load)
	assert.True(t, s.Snapshot().Timer)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(s.ID))
	<-s.Done()
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Close(s.ID), ErrNotFound)

	_, err = s.Select(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_CreateKeepsSessionOnLoadError(t *testing.T) {
	m, _ := newManager(exam.SourceFunc(func(context.Context, int64, int64) ([]exam.Question, error) {
		return nil, errors.New("unavailable")
	}))
	s, err := m.Create(context.Background(), 1, 2)
	require.Error(t, err)
	require.NotNil(t, s)
	assert.Equal(t, LoadError, s.Snapshot().Load)

	_, err = m.Get(s.ID)
	assert.NoError(t, err)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ListAndShutdown(t *testing.T) {
	m, _ := newManager(staticSource(questions(3)))
	a, err := m.Create(context.Background(), 1, 1)
	require.NoError(t, err)
	b, err := m.Create(context.Background(), 2, 1)
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Empty(t, m.List())
	<-a.Done()
	<-b.Done()
}

func TestManager_CreateReusesPairSession(t *testing.T) {
	m, _ := newManager(staticSource(questions(3)))
	defer func() { require.NoError(t, m.Shutdown(context.Background())) }()

	first, err := m.Create(context.Background(), 7, 9)
	require.NoError(t, err)
	_, _, err = first.ReportEvent(proctor.Event{Type: "copy"})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		again, err := m.Create(context.Background(), 7, 9)
		require.NoError(t, err)
		assert.Same(t, first, again)
	}
	assert.Len(t, m.List(), 1)
	assert.Equal(t, 1, first.Guard().Count(proctor.Clipboard))

	other, err := m.Create(context.Background(), 8, 9)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	// an ended session is still what a reload gets, counters included
	for i := 0; i < 2; i++ {
		_, _, err = first.ReportEvent(proctor.Event{Type: "copy"})
		require.NoError(t, err)
	}
	require.Equal(t, StageTerminated, first.Stage())
	again, err := m.Create(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 3, again.Guard().Count(proctor.Clipboard))
}

func TestManager_EvictsEndedSessions(t *testing.T) {
	m := NewManager(flow(func(f *Flow) {
		f.Timer = false
		f.Retention = 20 * time.Millisecond
	}), Deps{Source: staticSource(questions(3)), Scores: &fakeScores{}})
	defer func() { require.NoError(t, m.Shutdown(context.Background())) }()

	s, err := m.Create(context.Background(), 7, 9)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _, err = s.ReportEvent(proctor.Event{Type: "copy"})
		require.NoError(t, err)
	}
	require.Equal(t, StageTerminated, s.Stage())

	require.Eventually(t, func() bool {
		_, err := m.Get(s.ID)
		return errors.Is(err, ErrNotFound)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, m.List())
	_, err = s.Select(0)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = m.Create(context.Background(), 7, 9)
	assert.ErrorIs(t, err, ErrEnded)
}

func TestManager_CloseBeforeEndAllowsNewSession(t *testing.T) {
	m := NewManager(flow(func(f *Flow) { f.Timer = false }),
		Deps{Source: staticSource(questions(3)), Scores: &fakeScores{}})
	defer func() { require.NoError(t, m.Shutdown(context.Background())) }()

	s, err := m.Create(context.Background(), 7, 9)
	require.NoError(t, err)
	require.NoError(t, m.Close(s.ID))

	next, err := m.Create(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, next.ID)
}
