// Package recorder exports the composited canvas to a video file.
//
// A run is idle → recording → idle. While recording, three loops run
// independently: a wall-clock progress loop that ends the run, a capture
// loop that feeds canvas snapshots to the encoder at the export frame rate,
// and a chunk collector draining the encoder. The player is asked to start
// a fresh play-through through PlaybackRequests rather than being driven
// directly.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/ivlev/trailer2video/internal/audio"
	"github.com/ivlev/trailer2video/internal/storage"
	"github.com/ivlev/trailer2video/internal/system"
	"github.com/ivlev/trailer2video/internal/video"
)

var (
	ErrCanvasUnavailable = errors.New("canvas not ready")
	ErrAlreadyRecording  = errors.New("already recording")
	ErrNothingToRecord   = errors.New("timeline is empty")
)

// Surface is the rendered canvas.
type Surface interface {
	// Snapshot copies the latest frame. The caller hands it back with
	// system.ReleaseFrame.
	Snapshot() (*image.RGBA, bool)
	Bounds() image.Rectangle
}

// Encoder consumes frames and produces the container on Output. Close may
// block until Output has been read to EOF, and Output may still deliver
// data after Close returns.
type Encoder interface {
	WriteFrame(img image.Image) error
	Output() io.Reader
	Close() error
}

type EncoderFactory func(ctx context.Context, opts video.Options) (Encoder, error)

// AudioSource provides the audio bed to mix into the export.
type AudioSource interface {
	MixSource() (audio.Mix, error)
}

// PlaybackRequest asks the player for a full play-through from zero.
type PlaybackRequest struct {
	Duration float64
}

type State struct {
	Recording bool
	Progress  int
}

// Result summarizes a finished run.
type Result struct {
	Location  string
	Frames    int
	Chunks    int
	Bytes     int
	WithAudio bool
	Elapsed   time.Duration
	Err       error
}

type Options struct {
	Width            int
	Height           int
	FPS              int
	Codec            string
	Bitrate          string
	Container        string
	FileName         string
	ChunkInterval    time.Duration
	ProgressInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		Width:            1920,
		Height:           1080,
		FPS:              30,
		Codec:            "libvpx-vp9",
		Bitrate:          "5M",
		Container:        "webm",
		FileName:         "the-curse-of-parsi-falia-trailer.webm",
		ChunkInterval:    100 * time.Millisecond,
		ProgressInterval: time.Second / 60,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = d.Width, d.Height
	}
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.Codec == "" {
		o.Codec = d.Codec
	}
	if o.Bitrate == "" {
		o.Bitrate = d.Bitrate
	}
	if o.Container == "" {
		o.Container = d.Container
	}
	if o.FileName == "" {
		o.FileName = d.FileName
	}
	if o.ChunkInterval <= 0 {
		o.ChunkInterval = d.ChunkInterval
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = d.ProgressInterval
	}
	return o
}

type Option func(*Recorder)

func WithAudio(src AudioSource) Option {
	return func(r *Recorder) { r.audio = src }
}

func WithEncoder(f EncoderFactory) Option {
	return func(r *Recorder) { r.encoder = f }
}

func WithNow(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

type Recorder struct {
	opts      Options
	surface   Surface
	publisher storage.Publisher
	audio     AudioSource
	encoder   EncoderFactory
	now       func() time.Time

	listeners listeners
	requests  chan PlaybackRequest

	mu     sync.Mutex
	state  State
	done   chan struct{}
	result Result
}

// New builds a recorder. surface may be nil until the canvas exists; Start
// then fails with ErrCanvasUnavailable.
func New(surface Surface, publisher storage.Publisher, opts Options, options ...Option) *Recorder {
	r := &Recorder{
		opts:      opts.withDefaults(),
		surface:   surface,
		publisher: publisher,
		encoder: func(ctx context.Context, o video.Options) (Encoder, error) {
			return video.Start(ctx, o)
		},
		now:      time.Now,
		requests: make(chan PlaybackRequest, 1),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

func (r *Recorder) AddListener(fn func(Event)) {
	r.listeners.add(fn)
}

// PlaybackRequests delivers one request per started run.
func (r *Recorder) PlaybackRequests() <-chan PlaybackRequest {
	return r.requests
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins recording a play-through of total seconds. Setup failures
// leave the recorder idle and are returned as well as reported to
// listeners. The run ends on its own after total seconds or when ctx is
// canceled.
func (r *Recorder) Start(ctx context.Context, total float64) error {
	r.mu.Lock()
	if r.state.Recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	if err := r.setupErr(total); err != nil {
		r.mu.Unlock()
		r.listeners.notify(Event{Stage: StageError, Message: "Failed to start recording", Err: err})
		return err
	}
	r.state = State{Recording: true}
	r.result = Result{}
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	enc, withAudio, err := r.startEncoder(ctx)
	if err != nil {
		err = fmt.Errorf("failed to start recording: %w", err)
		slog.Error("Recording error", "error", err)

		r.mu.Lock()
		r.state = State{}
		r.result = Result{Err: err}
		r.mu.Unlock()
		close(done)

		r.listeners.notify(Event{Stage: StageError, Message: "Failed to start recording", Err: err})
		return err
	}

	run := &run{
		rec:       r,
		enc:       enc,
		total:     total,
		started:   r.now(),
		withAudio: withAudio,
		collector: newChunkCollector(enc.Output(), r.opts.ChunkInterval),
	}

	select {
	case r.requests <- PlaybackRequest{Duration: total}:
	default:
		slog.Warn("Previous playback request not consumed")
	}

	slog.Info("Recording started", "duration", total, "audio", withAudio)
	r.listeners.notify(Event{Stage: StageStarted})

	go run.loop(ctx)
	return nil
}

func (r *Recorder) setupErr(total float64) error {
	if r.surface == nil || r.surface.Bounds().Empty() {
		return ErrCanvasUnavailable
	}
	if total <= 0 {
		return ErrNothingToRecord
	}
	return nil
}

// startEncoder tries audio+video first and degrades to video only when the
// audio input is unavailable or the encoder cannot open it.
func (r *Recorder) startEncoder(ctx context.Context) (Encoder, bool, error) {
	opts := video.Options{
		Width:     r.opts.Width,
		Height:    r.opts.Height,
		FPS:       r.opts.FPS,
		Codec:     r.opts.Codec,
		Bitrate:   r.opts.Bitrate,
		Container: r.opts.Container,
	}

	if in := r.audioInput(); in != nil {
		withAudio := opts
		withAudio.Audio = in
		enc, err := r.encoder(ctx, withAudio)
		if err == nil {
			return enc, true, nil
		}
		slog.Warn("Failed to add audio to recording, continuing with video only", "error", err)
	}

	enc, err := r.encoder(ctx, opts)
	return enc, false, err
}

func (r *Recorder) audioInput() *video.AudioInput {
	if r.audio == nil {
		return nil
	}
	mix, err := r.audio.MixSource()
	if err != nil {
		if !errors.Is(err, audio.ErrDisabled) {
			slog.Warn("Audio unavailable for recording", "error", err)
		}
		return nil
	}
	if _, err := os.Stat(mix.Path); err != nil {
		slog.Warn("Audio unavailable for recording", "error", err)
		return nil
	}
	return &video.AudioInput{Path: mix.Path, Volume: mix.Volume}
}

// Wait blocks until the current run has finished and returns its result.
// Without a run it returns immediately.
func (r *Recorder) Wait() Result {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return Result{}
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

func (r *Recorder) setProgress(p int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == r.state.Progress {
		return false
	}
	r.state.Progress = p
	return true
}

func (r *Recorder) finish(res Result) {
	r.mu.Lock()
	r.state = State{}
	r.result = res
	done := r.done
	r.mu.Unlock()

	if res.Err != nil {
		slog.Error("Recording failed", "error", res.Err)
		r.listeners.notify(Event{Stage: StageError, Message: "Recording failed", Err: res.Err})
	} else {
		slog.Info("Recording finished", "location", res.Location, "frames", res.Frames, "bytes", res.Bytes)
		r.listeners.notify(Event{Stage: StageComplete, Progress: 100, Message: "Video exported successfully!", Location: res.Location})
	}
	close(done)
}

// Progress is floor(elapsed/total*100) clamped to [0,100].
func Progress(elapsed, total float64) int {
	if total <= 0 {
		return 100
	}
	p := math.Min(elapsed/total*100, 100)
	if p < 0 {
		p = 0
	}
	return int(math.Floor(p))
}

// run is one recording pass.
type run struct {
	rec       *Recorder
	enc       Encoder
	total     float64
	started   time.Time
	withAudio bool
	collector *chunkCollector

	frames int
}

func (ru *run) elapsed() float64 {
	return ru.rec.now().Sub(ru.started).Seconds()
}

func (ru *run) loop(ctx context.Context) {
	captureCtx, stopCapture := context.WithCancel(ctx)
	captureDone := make(chan error, 1)
	go func() { captureDone <- ru.capture(captureCtx) }()

	err := ru.track(ctx)
	stopCapture()
	if capErr := <-captureDone; err == nil && capErr != nil {
		err = capErr
	}

	res := Result{Frames: ru.frames, WithAudio: ru.withAudio}

	if err != nil {
		ru.enc.Close()
		ru.collector.abort()
		res.Err = err
		res.Elapsed = ru.rec.now().Sub(ru.started)
		ru.rec.finish(res)
		return
	}

	ru.rec.listeners.notify(Event{Stage: StageFinishing, Progress: 100})
	closeErr := ru.enc.Close()
	chunks := ru.collector.finish()
	res.Chunks = len(chunks)
	res.Bytes = totalBytes(chunks)
	res.Elapsed = ru.rec.now().Sub(ru.started)

	if closeErr != nil {
		res.Err = closeErr
		ru.rec.finish(res)
		return
	}

	publishCtx := context.WithoutCancel(ctx)
	loc, err := ru.rec.publisher.Publish(publishCtx, ru.rec.opts.FileName, assemble(chunks))
	if err != nil {
		res.Err = fmt.Errorf("failed to publish export: %w", err)
	}
	res.Location = loc
	ru.rec.finish(res)
}

// track runs the wall-clock progress loop until total has elapsed.
func (ru *run) track(ctx context.Context) error {
	ticker := time.NewTicker(ru.rec.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		elapsed := ru.elapsed()
		p := Progress(elapsed, ru.total)
		if ru.rec.setProgress(p) {
			ru.rec.listeners.notify(Event{Stage: StageProgress, Progress: p})
		}
		if elapsed >= ru.total {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// capture writes canvas snapshots at the export frame rate. When ticks are
// late the last snapshot is repeated so video time keeps pace with wall
// time.
func (ru *run) capture(ctx context.Context) error {
	fps := ru.rec.opts.FPS
	maxFrames := int(math.Ceil(ru.total * float64(fps)))
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		due := int(ru.elapsed()*float64(fps)) + 1
		if due > maxFrames {
			due = maxFrames
		}
		if due <= ru.frames {
			continue
		}

		frame, ok := ru.rec.surface.Snapshot()
		if !ok {
			continue
		}
		for ru.frames < due {
			if err := ru.enc.WriteFrame(frame); err != nil {
				system.ReleaseFrame(frame)
				return err
			}
			ru.frames++
		}
		system.ReleaseFrame(frame)
	}
}
