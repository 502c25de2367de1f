package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManual() *manualTicker { return &manualTicker{ch: make(chan time.Time)} }

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }
func (m *manualTicker) tick()               { m.ch <- time.Time{} }

func withManual(m *manualTicker) Option {
	return WithTicker(func(time.Duration) Ticker { return m })
}

func TestCountdown_TicksAndExpiresOnce(t *testing.T) {
	mt := newManual()
	var ticks []time.Duration
	var expired atomic.Int32

	c := New(3*time.Second,
		withManual(mt),
		OnTick(func(r time.Duration) { ticks = append(ticks, r) }),
		OnExpire(func() { expired.Add(1) }),
	)
	require.NoError(t, c.Start(context.Background()))

	mt.tick()
	mt.tick()
	assert.False(t, c.Expired())
	mt.tick()

	<-c.Done()
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, 0}, ticks)
	assert.True(t, c.Expired())
	assert.Zero(t, c.Remaining())
	assert.Equal(t, int32(1), expired.Load())
	assert.True(t, mt.stopped.Load())

	// expiry is irreversible
	c.Stop()
	assert.True(t, c.Expired())
	assert.ErrorIs(t, c.Start(context.Background()), ErrStarted)
}

func TestCountdown_StopBeforeExpiry(t *testing.T) {
	mt := newManual()
	var expired atomic.Bool
	c := New(10*time.Second, withManual(mt), OnExpire(func() { expired.Store(true) }))
	require.NoError(t, c.Start(context.Background()))

	mt.tick()
	c.Stop()
	c.Stop()
	<-c.Done()

	assert.Equal(t, 9*time.Second, c.Remaining())
	assert.False(t, c.Expired())
	assert.False(t, expired.Load())
}

func TestCountdown_StopFromExpireCallback(t *testing.T) {
	mt := newManual()
	var c *Countdown
	c = New(time.Second, withManual(mt), OnExpire(func() { c.Stop() }))
	require.NoError(t, c.Start(context.Background()))
	mt.tick()
	<-c.Done()
	assert.True(t, c.Expired())
}

func TestCountdown_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(time.Minute, withManual(newManual()))
	require.NoError(t, c.Start(ctx))
	cancel()
	<-c.Done()
	assert.Equal(t, time.Minute, c.Remaining())
}

func TestCountdown_StopWithoutStart(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultDuration, c.Total())
	c.Stop()
	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.ErrorIs(t, c.Start(context.Background()), ErrStarted)
}

func TestCountdown_RealTicker(t *testing.T) {
	expired := make(chan struct{})
	c := New(30*time.Millisecond, WithInterval(10*time.Millisecond), OnExpire(func() { close(expired) }))
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}
	<-c.Done()
}
