// Package timer runs the fixed-duration test countdown.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultDuration = 10 * time.Minute
	DefaultInterval = time.Second
)

var ErrStarted = errors.New("timer: already started")

// Ticker is the subset of *time.Ticker the countdown uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type Option func(*Countdown)

// OnTick is called after every decrement with the time left.
func OnTick(fn func(remaining time.Duration)) Option {
	return func(c *Countdown) { c.onTick = fn }
}

// OnExpire is called once when the countdown reaches zero.
func OnExpire(fn func()) Option {
	return func(c *Countdown) { c.onExpire = fn }
}

func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(c *Countdown) { c.newTicker = fn }
}

func WithInterval(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Countdown decrements by one interval per tick. Callbacks run on the
// countdown goroutine with no lock held.
type Countdown struct {
	total     time.Duration
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	onTick    func(time.Duration)
	onExpire  func()

	mu        sync.Mutex
	remaining time.Duration
	started   bool
	stopped   bool
	expired   bool
	stop      chan struct{}
	done      chan struct{}
}

func New(d time.Duration, opts ...Option) *Countdown {
	if d <= 0 {
		d = DefaultDuration
	}
	c := &Countdown{
		total:     d,
		interval:  DefaultInterval,
		newTicker: newRealTicker,
		remaining: d,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start launches the countdown. It ends when ctx is cancelled, Stop is
// called or the time runs out.
func (c *Countdown) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return ErrStarted
	}
	c.started = true
	c.mu.Unlock()

	t := c.newTicker(c.interval)
	go c.run(ctx, t)
	return nil
}

func (c *Countdown) run(ctx context.Context, t Ticker) {
	defer close(c.done)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-t.C():
			c.mu.Lock()
			if c.stopped {
				c.mu.Unlock()
				return
			}
			c.remaining -= c.interval
			if c.remaining <= 0 {
				c.remaining = 0
				c.expired = true
			}
			rem, expired := c.remaining, c.expired
			c.mu.Unlock()

			if c.onTick != nil {
				c.onTick(rem)
			}
			if expired {
				if c.onExpire != nil {
					c.onExpire()
				}
				return
			}
		}
	}
}

// Stop halts the countdown without waiting for the goroutine. Safe to call
// more than once and from callbacks.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
	if !c.started {
		close(c.done)
	}
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} { return c.done }

func (c *Countdown) Total() time.Duration { return c.total }

func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}
