package recorder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/trailer2video/internal/audio"
	"github.com/ivlev/trailer2video/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	bounds image.Rectangle
}

func (f *fakeSurface) Bounds() image.Rectangle { return f.bounds }

func (f *fakeSurface) Snapshot() (*image.RGBA, bool) {
	return image.NewRGBA(f.bounds), true
}

type fakeEncoder struct {
	mu       sync.Mutex
	pr       *io.PipeReader
	pw       *io.PipeWriter
	frames   int
	closeErr error
}

func newFakeEncoder() *fakeEncoder {
	pr, pw := io.Pipe()
	return &fakeEncoder{pr: pr, pw: pw}
}

func (f *fakeEncoder) WriteFrame(img image.Image) error {
	f.mu.Lock()
	f.frames++
	f.mu.Unlock()
	_, err := f.pw.Write([]byte("F"))
	return err
}

func (f *fakeEncoder) Output() io.Reader { return f.pr }

// Close returns at once and flushes its tail later, like a process that
// exits after its stdin is closed.
func (f *fakeEncoder) Close() error {
	go func() {
		time.Sleep(30 * time.Millisecond)
		f.pw.Write([]byte("END"))
		f.pw.Close()
	}()
	return f.closeErr
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	name  string
	data  []byte
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, name string, r io.Reader) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.name = name
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p.data = data
	if p.err != nil {
		return "", p.err
	}
	return "/out/" + name, nil
}

type fakeAudio struct {
	mix audio.Mix
	err error
}

func (f fakeAudio) MixSource() (audio.Mix, error) { return f.mix, f.err }

func testOptions() Options {
	opts := DefaultOptions()
	opts.Width, opts.Height = 8, 4
	opts.ChunkInterval = 10 * time.Millisecond
	opts.ProgressInterval = 5 * time.Millisecond
	return opts
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) stages() []Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Stage
	for _, e := range l.events {
		out = append(out, e.Stage)
	}
	return out
}

func (l *eventLog) progress() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []int
	for _, e := range l.events {
		if e.Stage == StageProgress {
			out = append(out, e.Progress)
		}
	}
	return out
}

func newTestRecorder(enc *fakeEncoder, pub *fakePublisher, extra ...Option) (*Recorder, *eventLog) {
	opts := append([]Option{WithEncoder(func(ctx context.Context, o video.Options) (Encoder, error) {
		return enc, nil
	})}, extra...)
	r := New(&fakeSurface{bounds: image.Rect(0, 0, 8, 4)}, pub, testOptions(), opts...)
	log := &eventLog{}
	r.AddListener(log.add)
	return r, log
}

func TestRecordFullRun(t *testing.T) {
	enc := newFakeEncoder()
	pub := &fakePublisher{}
	r, log := newTestRecorder(enc, pub)

	require.NoError(t, r.Start(context.Background(), 0.2))
	assert.True(t, r.State().Recording)

	select {
	case req := <-r.PlaybackRequests():
		assert.Equal(t, 0.2, req.Duration)
	case <-time.After(time.Second):
		t.Fatal("no playback request")
	}

	res := r.Wait()
	require.NoError(t, res.Err)
	assert.Equal(t, "/out/the-curse-of-parsi-falia-trailer.webm", res.Location)
	assert.Equal(t, State{}, r.State())

	assert.Greater(t, res.Frames, 0)
	assert.LessOrEqual(t, res.Frames, 6)
	assert.Equal(t, res.Frames, enc.frames)

	// Every byte the encoder produced, in order, including the flush on close
	want := append(bytes.Repeat([]byte("F"), res.Frames), []byte("END")...)
	assert.Equal(t, want, pub.data)
	assert.Equal(t, len(want), res.Bytes)
	assert.GreaterOrEqual(t, res.Chunks, 1)

	stages := log.stages()
	assert.Equal(t, StageStarted, stages[0])
	assert.Equal(t, StageComplete, stages[len(stages)-1])

	progress := log.progress()
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
}

func TestStartRejectsWithoutCanvas(t *testing.T) {
	r := New(nil, &fakePublisher{}, testOptions())
	log := &eventLog{}
	r.AddListener(log.add)

	err := r.Start(context.Background(), 5)
	assert.ErrorIs(t, err, ErrCanvasUnavailable)
	assert.Equal(t, State{}, r.State())
	assert.Equal(t, []Stage{StageError}, log.stages())
	assert.Equal(t, Result{}, r.Wait())
}

func TestStartRejectsEmptyTimeline(t *testing.T) {
	r, _ := newTestRecorder(newFakeEncoder(), &fakePublisher{})
	assert.ErrorIs(t, r.Start(context.Background(), 0), ErrNothingToRecord)
	assert.False(t, r.State().Recording)
}

func TestStartEncoderFailure(t *testing.T) {
	boom := errors.New("no ffmpeg")
	pub := &fakePublisher{}
	r := New(&fakeSurface{bounds: image.Rect(0, 0, 8, 4)}, pub, testOptions(),
		WithEncoder(func(context.Context, video.Options) (Encoder, error) { return nil, boom }))

	err := r.Start(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, State{}, r.State())
	assert.ErrorIs(t, r.Wait().Err, boom)
	assert.Zero(t, pub.calls)

	select {
	case <-r.PlaybackRequests():
		t.Fatal("playback requested for a failed start")
	default:
	}
}

func TestStartWhileRecording(t *testing.T) {
	r, _ := newTestRecorder(newFakeEncoder(), &fakePublisher{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx, 10))
	assert.ErrorIs(t, r.Start(ctx, 10), ErrAlreadyRecording)

	cancel()
	res := r.Wait()
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, State{}, r.State())
}

func TestCancelSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	r, log := newTestRecorder(newFakeEncoder(), pub)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Start(ctx, 10))
	time.Sleep(20 * time.Millisecond)
	cancel()

	res := r.Wait()
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, pub.calls)
	stages := log.stages()
	assert.Equal(t, StageError, stages[len(stages)-1])
}

func TestEncoderCloseFailure(t *testing.T) {
	enc := newFakeEncoder()
	enc.closeErr = errors.New("muxer failed")
	pub := &fakePublisher{}
	r, _ := newTestRecorder(enc, pub)

	require.NoError(t, r.Start(context.Background(), 0.05))
	res := r.Wait()
	assert.ErrorIs(t, res.Err, enc.closeErr)
	assert.Zero(t, pub.calls)
}

func TestAudioMixedWhenAvailable(t *testing.T) {
	bed := filepath.Join(t.TempDir(), "bed.mp3")
	require.NoError(t, os.WriteFile(bed, []byte("x"), 0o644))

	var got []video.Options
	factory := func(ctx context.Context, o video.Options) (Encoder, error) {
		got = append(got, o)
		return newFakeEncoder(), nil
	}
	r := New(&fakeSurface{bounds: image.Rect(0, 0, 8, 4)}, &fakePublisher{}, testOptions(),
		WithEncoder(factory), WithAudio(fakeAudio{mix: audio.Mix{Path: bed, Volume: 0.5}}))

	require.NoError(t, r.Start(context.Background(), 0.05))
	res := r.Wait()
	require.NoError(t, res.Err)
	assert.True(t, res.WithAudio)
	require.Len(t, got, 1)
	assert.Equal(t, &video.AudioInput{Path: bed, Volume: 0.5}, got[0].Audio)
}

func TestAudioFailureFallsBackToVideoOnly(t *testing.T) {
	bed := filepath.Join(t.TempDir(), "bed.mp3")
	require.NoError(t, os.WriteFile(bed, []byte("x"), 0o644))

	var calls int
	factory := func(ctx context.Context, o video.Options) (Encoder, error) {
		calls++
		if o.Audio != nil {
			return nil, errors.New("cannot open audio")
		}
		return newFakeEncoder(), nil
	}
	r := New(&fakeSurface{bounds: image.Rect(0, 0, 8, 4)}, &fakePublisher{}, testOptions(),
		WithEncoder(factory), WithAudio(fakeAudio{mix: audio.Mix{Path: bed, Volume: 0.5}}))

	require.NoError(t, r.Start(context.Background(), 0.05))
	res := r.Wait()
	require.NoError(t, res.Err)
	assert.False(t, res.WithAudio)
	assert.Equal(t, 2, calls)
}

func TestAudioSkippedWhenDisabledOrMissing(t *testing.T) {
	for _, src := range []AudioSource{
		fakeAudio{err: audio.ErrDisabled},
		fakeAudio{err: audio.ErrNotReady},
		fakeAudio{mix: audio.Mix{Path: filepath.Join(t.TempDir(), "missing.mp3")}},
	} {
		var withAudio bool
		factory := func(ctx context.Context, o video.Options) (Encoder, error) {
			withAudio = withAudio || o.Audio != nil
			return newFakeEncoder(), nil
		}
		r := New(&fakeSurface{bounds: image.Rect(0, 0, 8, 4)}, &fakePublisher{}, testOptions(),
			WithEncoder(factory), WithAudio(src))

		require.NoError(t, r.Start(context.Background(), 0.02))
		require.NoError(t, r.Wait().Err)
		assert.False(t, withAudio)
	}
}

func TestPublishFailureReported(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bucket gone")}
	r, log := newTestRecorder(newFakeEncoder(), pub)

	require.NoError(t, r.Start(context.Background(), 0.02))
	res := r.Wait()
	assert.ErrorIs(t, res.Err, pub.err)
	stages := log.stages()
	assert.Equal(t, StageError, stages[len(stages)-1])
}

func TestProgress(t *testing.T) {
	tests := []struct {
		elapsed, total float64
		want           int
	}{
		{0, 10, 0},
		{0.99, 10, 9},
		{5, 10, 50},
		{10, 10, 100},
		{12, 10, 100},
		{-1, 10, 0},
		{1, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Progress(tt.elapsed, tt.total), "%v/%v", tt.elapsed, tt.total)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultOptions(), o)
}
