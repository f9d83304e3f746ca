// Package player owns the timeline and playback state and wires the clock
// to the compositor, the audio bed and the export recorder.
package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ivlev/trailer2video/internal/clock"
	"github.com/ivlev/trailer2video/internal/recorder"
	"github.com/ivlev/trailer2video/internal/renderer"
	"github.com/ivlev/trailer2video/internal/store"
	"github.com/ivlev/trailer2video/internal/timeline"
)

var ErrBusy = errors.New("stop playback before exporting")

// Renderer draws a frame for the given time.
type Renderer interface {
	Render(segments []timeline.Segment, globalTime float64) []renderer.Op
}

// AudioSync follows the playback state. It never starts on its own.
type AudioSync interface {
	SyncToTime(t float64)
	PlayAudio(fromTime float64)
	PauseAudio()
	ResetAudio()
}

type Recorder interface {
	Start(ctx context.Context, total float64) error
	State() recorder.State
	PlaybackRequests() <-chan recorder.PlaybackRequest
}

type Option func(*Controller)

// WithStartDelay sets the pause between rewinding and starting playback
// for an export.
func WithStartDelay(d time.Duration) Option {
	return func(c *Controller) { c.startDelay = d }
}

func WithClockOptions(opts ...clock.Option) Option {
	return func(c *Controller) { c.clockOpts = append(c.clockOpts, opts...) }
}

type Controller struct {
	kv         store.KV
	canvas     Renderer
	audio      AudioSync
	rec        Recorder
	startDelay time.Duration
	clockOpts  []clock.Option

	clock *clock.Clock

	mu         sync.Mutex
	segments   []timeline.Segment
	wasPlaying bool
}

// New loads the saved timeline (or the default script) and renders the
// first frame.
func New(kv store.KV, canvas Renderer, audio AudioSync, rec Recorder, opts ...Option) *Controller {
	c := &Controller{
		kv:         kv,
		canvas:     canvas,
		audio:      audio,
		rec:        rec,
		startDelay: 100 * time.Millisecond,
		segments:   timeline.Load(kv),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.clock = clock.New(timeline.TotalDuration(c.segments), c.clockOpts...)
	c.clock.OnChange(c.onClock)
	c.canvas.Render(c.segments, 0)
	return c
}

func (c *Controller) onClock(s clock.State) {
	c.mu.Lock()
	segments := c.segments
	started := s.Playing && !c.wasPlaying
	stopped := !s.Playing && c.wasPlaying
	c.wasPlaying = s.Playing
	c.mu.Unlock()

	c.canvas.Render(segments, s.CurrentTime)

	switch {
	case started:
		c.audio.PlayAudio(s.CurrentTime)
	case stopped:
		c.audio.PauseAudio()
	}
}

func (c *Controller) recording() bool {
	return c.rec != nil && c.rec.State().Recording
}

// Play is ignored while an export is running.
func (c *Controller) Play() {
	if c.recording() {
		return
	}
	c.clock.Play()
}

func (c *Controller) Pause() {
	c.clock.Pause()
}

func (c *Controller) TogglePlay() {
	if c.clock.State().Playing {
		c.Pause()
		return
	}
	c.Play()
}

func (c *Controller) Seek(t float64) {
	c.clock.Seek(t)
	c.audio.SyncToTime(c.clock.State().CurrentTime)
}

// Reset rewinds playback and audio. Ignored while an export is running.
func (c *Controller) Reset() {
	if c.recording() {
		return
	}
	c.reset()
}

func (c *Controller) reset() {
	c.clock.Reset()
	c.audio.ResetAudio()
}

// Export rewinds and starts the recorder after the start delay. It is
// refused while playing or already recording.
func (c *Controller) Export(ctx context.Context) error {
	if c.rec == nil {
		return recorder.ErrCanvasUnavailable
	}
	if c.clock.State().Playing {
		return ErrBusy
	}
	if c.recording() {
		return recorder.ErrAlreadyRecording
	}

	c.reset()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.startDelay):
	}

	return c.rec.Start(ctx, c.clock.State().TotalDuration)
}

// SetSegmentDuration edits one segment, saves the timeline and re-clamps
// the cursor.
func (c *Controller) SetSegmentDuration(index int, d float64) error {
	c.mu.Lock()
	updated, err := timeline.WithDuration(c.segments, index, d)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.segments = updated
	c.mu.Unlock()

	if err := timeline.Save(c.kv, updated); err != nil {
		slog.Error("Failed to save timeline", "error", err)
	}

	c.clock.SetTotal(timeline.TotalDuration(updated))
	return nil
}

// ReplaceSegments swaps in a whole new timeline, rewinding playback.
func (c *Controller) ReplaceSegments(segments []timeline.Segment) error {
	if err := timeline.Validate(segments); err != nil {
		return err
	}
	segments = timeline.Clone(segments)

	c.clock.Pause()
	c.mu.Lock()
	c.segments = segments
	c.mu.Unlock()

	if err := timeline.Save(c.kv, segments); err != nil {
		slog.Error("Failed to save timeline", "error", err)
	}
	c.clock.SetTotal(timeline.TotalDuration(segments))
	c.reset()
	return nil
}

// Segments returns a copy of the current timeline.
func (c *Controller) Segments() []timeline.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timeline.Clone(c.segments)
}

func (c *Controller) Playback() clock.State {
	return c.clock.State()
}

func (c *Controller) Recording() recorder.State {
	if c.rec == nil {
		return recorder.State{}
	}
	return c.rec.State()
}

// Run serves recorder requests for a fresh play-through until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if c.rec == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	requests := c.rec.PlaybackRequests()
	for {
		select {
		case <-ctx.Done():
			c.clock.Pause()
			return ctx.Err()
		case req := <-requests:
			slog.Debug("Starting recording playback", "duration", req.Duration)
			c.reset()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.startDelay):
			}
			c.clock.Play()
		}
	}
}
