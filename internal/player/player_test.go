package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/trailer2video/internal/clock"
	"github.com/ivlev/trailer2video/internal/recorder"
	"github.com/ivlev/trailer2video/internal/renderer"
	"github.com/ivlev/trailer2video/internal/store"
	"github.com/ivlev/trailer2video/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu    sync.Mutex
	times []float64
	total float64
}

func (f *fakeRenderer) Render(segments []timeline.Segment, t float64) []renderer.Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, t)
	f.total = timeline.TotalDuration(segments)
	return nil
}

func (f *fakeRenderer) last() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.times[len(f.times)-1], f.total
}

type fakeAudio struct {
	mu    sync.Mutex
	calls []string
	plays []float64
	syncs []float64
}

func (f *fakeAudio) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAudio) SyncToTime(t float64) {
	f.record("sync")
	f.mu.Lock()
	f.syncs = append(f.syncs, t)
	f.mu.Unlock()
}

func (f *fakeAudio) PlayAudio(from float64) {
	f.record("play")
	f.mu.Lock()
	f.plays = append(f.plays, from)
	f.mu.Unlock()
}

func (f *fakeAudio) PauseAudio() { f.record("pause") }
func (f *fakeAudio) ResetAudio() { f.record("reset") }

func (f *fakeAudio) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	state    recorder.State
	starts   []float64
	requests chan recorder.PlaybackRequest
	err      error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{requests: make(chan recorder.PlaybackRequest, 1)}
}

func (f *fakeRecorder) Start(ctx context.Context, total float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, total)
	return f.err
}

func (f *fakeRecorder) State() recorder.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRecorder) setRecording(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Recording = on
}

func (f *fakeRecorder) PlaybackRequests() <-chan recorder.PlaybackRequest {
	return f.requests
}

type fixture struct {
	kv     *store.MemoryKV
	canvas *fakeRenderer
	audio  *fakeAudio
	rec    *fakeRecorder
	ctrl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		kv:     store.NewMemoryKV(),
		canvas: &fakeRenderer{},
		audio:  &fakeAudio{},
		rec:    newFakeRecorder(),
	}
	// Frames never tick on their own
	f.ctrl = New(f.kv, f.canvas, f.audio, f.rec,
		WithStartDelay(time.Millisecond),
		WithClockOptions(clock.WithFrameInterval(time.Hour)))
	t.Cleanup(f.ctrl.Pause)
	return f
}

func TestNewLoadsDefaultScript(t *testing.T) {
	f := newFixture(t)

	assert.Len(t, f.ctrl.Segments(), 10)
	assert.Equal(t, clock.State{TotalDuration: 42}, f.ctrl.Playback())

	tm, total := f.canvas.last()
	assert.Equal(t, 0.0, tm)
	assert.Equal(t, 42.0, total)
}

func TestPlayPauseDrivesAudio(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Seek(3)
	f.ctrl.Play()
	f.ctrl.Play()
	assert.True(t, f.ctrl.Playback().Playing)

	f.ctrl.TogglePlay()
	assert.False(t, f.ctrl.Playback().Playing)

	assert.Equal(t, []string{"sync", "play", "pause"}, f.audio.callList())
	assert.Equal(t, []float64{3}, f.audio.plays)
}

func TestSeekClampsAndSyncsAudio(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Seek(100)
	assert.Equal(t, 42.0, f.ctrl.Playback().CurrentTime)
	f.ctrl.Seek(-5)
	assert.Equal(t, 0.0, f.ctrl.Playback().CurrentTime)
	assert.Equal(t, []float64{42, 0}, f.audio.syncs)

	tm, _ := f.canvas.last()
	assert.Equal(t, 0.0, tm)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Seek(10)
	f.ctrl.Play()

	f.ctrl.Reset()
	assert.Equal(t, clock.State{TotalDuration: 42}, f.ctrl.Playback())
	assert.Equal(t, []string{"sync", "play", "pause", "reset"}, f.audio.callList())
}

func TestPlayAndResetIgnoredWhileRecording(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Seek(5)
	f.rec.setRecording(true)

	f.ctrl.Play()
	assert.False(t, f.ctrl.Playback().Playing)

	f.ctrl.Reset()
	assert.Equal(t, 5.0, f.ctrl.Playback().CurrentTime)
	assert.True(t, f.ctrl.Recording().Recording)
}

func TestSetSegmentDuration(t *testing.T) {
	f := newFixture(t)
	before := f.ctrl.Segments()

	require.NoError(t, f.ctrl.SetSegmentDuration(1, 10))

	after := f.ctrl.Segments()
	assert.Equal(t, 48.0, f.ctrl.Playback().TotalDuration)
	assert.Equal(t, 10.0, after[1].Duration)
	before[1].Duration = 10
	assert.Equal(t, before, after)

	// Auto-saved
	assert.Equal(t, after, timeline.Load(f.kv))

	_, total := f.canvas.last()
	assert.Equal(t, 48.0, total)

	assert.ErrorIs(t, f.ctrl.SetSegmentDuration(1, 0), timeline.ErrInvalidDuration)
	assert.ErrorIs(t, f.ctrl.SetSegmentDuration(99, 1), timeline.ErrIndexOutOfRange)
	assert.Equal(t, 48.0, f.ctrl.Playback().TotalDuration)
}

func TestShorterTimelineClampsCursor(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Seek(42)

	require.NoError(t, f.ctrl.SetSegmentDuration(0, 1))
	assert.Equal(t, 38.0, f.ctrl.Playback().TotalDuration)
	assert.Equal(t, 38.0, f.ctrl.Playback().CurrentTime)
}

func TestReplaceSegments(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Seek(20)

	segs := []timeline.Segment{
		{ID: "a", Duration: 5, SceneType: timeline.SceneTypeScene},
		{ID: "b", Duration: 3, SceneType: timeline.SceneTypeScene},
	}
	require.NoError(t, f.ctrl.ReplaceSegments(segs))
	assert.Equal(t, clock.State{TotalDuration: 8}, f.ctrl.Playback())
	assert.Equal(t, segs, timeline.Load(f.kv))

	assert.Error(t, f.ctrl.ReplaceSegments(nil))
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Seek(12)

	require.NoError(t, f.ctrl.Export(context.Background()))
	assert.Equal(t, []float64{42}, f.rec.starts)
	assert.Equal(t, 0.0, f.ctrl.Playback().CurrentTime)
	assert.Contains(t, f.audio.callList(), "reset")
}

func TestExportRefused(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Play()
	assert.ErrorIs(t, f.ctrl.Export(context.Background()), ErrBusy)
	f.ctrl.Pause()

	f.rec.setRecording(true)
	assert.ErrorIs(t, f.ctrl.Export(context.Background()), recorder.ErrAlreadyRecording)
	assert.Empty(t, f.rec.starts)
}

func TestExportCanceledDuringDelay(t *testing.T) {
	f := newFixture(t)
	f.ctrl.startDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.ctrl.Export(ctx), context.Canceled)
	assert.Empty(t, f.rec.starts)
}

func TestRunRestartsPlaybackOnRequest(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Seek(30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	f.rec.requests <- recorder.PlaybackRequest{Duration: 42}

	require.Eventually(t, func() bool { return f.ctrl.Playback().Playing }, time.Second, time.Millisecond)
	assert.Equal(t, 0.0, f.ctrl.Playback().CurrentTime)

	calls := f.audio.callList()
	assert.Equal(t, []string{"sync", "reset", "play"}, calls)
	assert.Equal(t, []float64{0}, f.audio.plays)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, f.ctrl.Playback().Playing)
}
