// Package clock drives the playback cursor.
//
// While running, a frame loop advances the cursor by the wall-clock delta since the
// previous frame (variable step, display-refresh driven). The loop is cancelled
// synchronously by Pause and Reset: a tick that was already in flight sees a stale
// generation and does nothing.
package clock

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60 Hz display refresh.
const DefaultFrameInterval = time.Second / 60

// State is a snapshot of the playback state.
type State struct {
	Playing       bool
	CurrentTime   float64
	TotalDuration float64
}

// Progress returns CurrentTime/TotalDuration in [0,1].
func (s State) Progress() float64 {
	if s.TotalDuration <= 0 {
		return 0
	}
	return s.CurrentTime / s.TotalDuration
}

type Option func(*Clock)

// WithNow replaces the wall clock, mainly for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithFrameInterval sets how often the frame loop advances the cursor.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Clock owns the playback state. The zero value is not usable; call New.
type Clock struct {
	mu        sync.Mutex
	total     float64
	current   float64
	playing   bool
	last      time.Time
	gen       uint64
	cancel    context.CancelFunc
	now       func() time.Time
	interval  time.Duration
	listeners []func(State)
	seq       uint64

	// deliverMu orders listener calls; delivered is the last seq handed out.
	deliverMu sync.Mutex
	delivered uint64
}

func New(total float64, opts ...Option) *Clock {
	c := &Clock{
		total:    math.Max(total, 0),
		now:      time.Now,
		interval: DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers a listener called after state changes, outside the state
// lock and in change order. A state superseded before delivery is skipped,
// so the last call a listener sees is always the current state. Listeners
// must not call back into the Clock.
func (c *Clock) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Clock) stateLocked() State {
	return State{Playing: c.playing, CurrentTime: c.current, TotalDuration: c.total}
}

// Play starts the frame loop. It is a no-op when already running.
func (c *Clock) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = true
	c.last = c.now()
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx, c.gen)
	s, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(s, seq)
}

// Pause stops the frame loop and keeps the cursor where it is.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.stopLocked()
	s, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(s, seq)
}

// Seek clamps t into [0, total] and moves the cursor, whether running or not.
func (c *Clock) Seek(t float64) {
	c.mu.Lock()
	c.current = clamp(t, 0, c.total)
	// Restart the delta from here so the jump itself is not counted as elapsed time.
	c.last = c.now()
	s, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(s, seq)
}

// Reset rewinds to zero and stops.
func (c *Clock) Reset() {
	c.mu.Lock()
	c.stopLocked()
	c.current = 0
	s, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(s, seq)
}

// SetTotal updates the total duration after a timeline edit and re-clamps the cursor.
func (c *Clock) SetTotal(total float64) {
	c.mu.Lock()
	c.total = math.Max(total, 0)
	c.current = clamp(c.current, 0, c.total)
	s, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(s, seq)
}

// Step performs one advance of the running cursor. It returns false once playback is
// stopped, either because it already was or because the end was reached.
func (c *Clock) Step() bool {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.step(gen)
}

func (c *Clock) step(gen uint64) bool {
	c.mu.Lock()
	if !c.playing || gen != c.gen {
		c.mu.Unlock()
		return false
	}

	now := c.now()
	delta := now.Sub(c.last).Seconds()
	if delta < 0 {
		delta = 0
	}
	c.last = now

	next := c.current + delta
	if next >= c.total {
		// Never overshoot, never wrap.
		c.current = c.total
		c.stopLocked()
	} else {
		c.current = next
	}
	running := c.playing
	s, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(s, seq)
	return running
}

func (c *Clock) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.step(gen) {
				return
			}
		}
	}
}

func (c *Clock) stopLocked() {
	c.playing = false
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// changedLocked stamps the current state with the next sequence number.
func (c *Clock) changedLocked() (State, uint64) {
	c.seq++
	return c.stateLocked(), c.seq
}

func (c *Clock) notify(s State, seq uint64) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq

	c.mu.Lock()
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
