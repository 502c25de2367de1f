package proctor

import (
	"sync"
	"time"
)

const (
	DefaultMaxViolations = 3
	WarningDuration      = 5 * time.Second
)

type Violation struct {
	Category Category  `json:"category"`
	At       time.Time `json:"at"`
}

// SummaryLine is one row of the overflow screen.
type SummaryLine struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Count    int      `json:"count"`
}

// State is a point-in-time view of the guard.
type State struct {
	Counts           map[Category]int `json:"counts"`
	Warning          string           `json:"warning,omitempty"`
	Exceeded         bool             `json:"exceeded"`
	Fullscreen       bool             `json:"fullscreen"`
	PromptFullscreen bool             `json:"prompt_fullscreen"`
	Released         bool             `json:"released"`
}

type Option func(*Guard)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// OnViolation is called after every increment with the category's new count.
// It runs without the guard's lock held.
func OnViolation(fn func(c Category, count int)) Option {
	return func(g *Guard) { g.onViolation = fn }
}

// Guard keeps the violation log for one test attempt.
type Guard struct {
	mu          sync.Mutex
	max         int
	now         func() time.Time
	onViolation func(Category, int)

	log        []Violation
	warning    string
	warnUntil  time.Time
	interacted bool
	fullscreen bool
	released   bool
}

func NewGuard(max int, opts ...Option) *Guard {
	if max <= 0 {
		max = DefaultMaxViolations
	}
	g := &Guard{max: max, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Guard) Max() int { return g.max }

// Record appends a violation and returns the category's new count.
// Once released, nothing is recorded and Record returns 0.
func (g *Guard) Record(c Category) int {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return 0
	}
	now := g.now()
	g.log = append(g.log, Violation{Category: c, At: now})
	g.warning = c.Warning()
	g.warnUntil = now.Add(WarningDuration)
	n := g.countLocked(c)
	cb := g.onViolation
	g.mu.Unlock()

	if cb != nil {
		cb(c, n)
	}
	return n
}

// Observe classifies ev and records it. It reports the recorded category,
// if any.
func (g *Guard) Observe(ev Event) (Category, bool) {
	if ev.Type == "fullscreenchange" && ev.Fullscreen != nil {
		if g.SetFullscreen(*ev.Fullscreen) {
			return Fullscreen, true
		}
		return "", false
	}
	c, ok := Classify(ev)
	if !ok {
		return "", false
	}
	if g.Record(c) == 0 {
		return "", false
	}
	return c, true
}

// Interact notes a user interaction. It returns true exactly once, on the
// first interaction, when the page should request fullscreen.
func (g *Guard) Interact() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.interacted || g.released {
		return false
	}
	g.interacted = true
	return true
}

// SetFullscreen updates the fullscreen flag. Leaving fullscreen while it was
// active is a violation; it returns true when one was recorded.
func (g *Guard) SetFullscreen(active bool) bool {
	g.mu.Lock()
	was := g.fullscreen
	g.fullscreen = active
	released := g.released
	g.mu.Unlock()

	if was && !active && !released {
		return g.Record(Fullscreen) > 0
	}
	return false
}

func (g *Guard) Fullscreen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fullscreen
}

// NeedsFullscreenPrompt reports whether the page should show the fullscreen
// prompt. It is hidden once the violation limit is reached.
func (g *Guard) NeedsFullscreenPrompt() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interacted && !g.fullscreen && !g.released && !g.exceededLocked()
}

func (g *Guard) countLocked(c Category) int {
	n := 0
	for _, v := range g.log {
		if v.Category == c {
			n++
		}
	}
	return n
}

func (g *Guard) countsLocked() map[Category]int {
	out := make(map[Category]int)
	for _, v := range g.log {
		out[v.Category]++
	}
	return out
}

func (g *Guard) exceededLocked() bool {
	for _, n := range g.countsLocked() {
		if n >= g.max {
			return true
		}
	}
	return false
}

func (g *Guard) Count(c Category) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.countLocked(c)
}

// Counts returns per-category totals derived from the log.
func (g *Guard) Counts() map[Category]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.countsLocked()
}

// CountsByName is Counts keyed by plain strings, for wire payloads.
func (g *Guard) CountsByName() map[string]int {
	counts := g.Counts()
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for c, n := range counts {
		out[string(c)] = n
	}
	return out
}

// Exceeded is true once any single category reaches the limit.
func (g *Guard) Exceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exceededLocked()
}

func (g *Guard) Log() []Violation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Violation(nil), g.log...)
}

// Warning returns the transient message while it is still showing.
func (g *Guard) Warning() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.warning == "" || !g.now().Before(g.warnUntil) {
		return ""
	}
	return g.warning
}

// Summary lists non-zero counts in display order.
func (g *Guard) Summary() []SummaryLine {
	counts := g.Counts()
	var out []SummaryLine
	for _, c := range Categories {
		if n := counts[c]; n > 0 {
			out = append(out, SummaryLine{Category: c, Label: c.Label(), Count: n})
		}
	}
	return out
}

// Release stops recording and drops fullscreen. It is idempotent.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = true
	g.fullscreen = false
}

func (g *Guard) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

func (g *Guard) State() State {
	prompt := g.NeedsFullscreenPrompt()
	warning := g.Warning()
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Counts:           g.countsLocked(),
		Warning:          warning,
		Exceeded:         g.exceededLocked(),
		Fullscreen:       g.fullscreen,
		PromptFullscreen: prompt,
		Released:         g.released,
	}
}
