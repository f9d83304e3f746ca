package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// manualClock never ticks on its own; tests drive it with Step.
func manualClock(total float64) (*Clock, *fakeNow) {
	fn := &fakeNow{t: time.Unix(1000, 0)}
	return New(total, WithNow(fn.Now), WithFrameInterval(time.Hour)), fn
}

func TestSeekClamps(t *testing.T) {
	tests := []struct {
		seek float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{3.25, 3.25},
		{8, 8},
		{100, 8},
	}

	for _, playing := range []bool{false, true} {
		for _, tt := range tests {
			c, _ := manualClock(8)
			if playing {
				c.Play()
			}
			c.Seek(tt.seek)
			assert.Equal(t, tt.want, c.State().CurrentTime, "seek(%v) playing=%v", tt.seek, playing)
			c.Pause()
		}
	}
}

func TestStepAdvancesByWallClockDelta(t *testing.T) {
	c, fn := manualClock(10)
	c.Play()

	fn.Advance(16 * time.Millisecond)
	require.True(t, c.Step())
	assert.InDelta(t, 0.016, c.State().CurrentTime, 1e-9)

	// Non-uniform deltas are fine
	fn.Advance(250 * time.Millisecond)
	require.True(t, c.Step())
	assert.InDelta(t, 0.266, c.State().CurrentTime, 1e-9)

	c.Pause()
}

func TestReachesEndExactlyAndStops(t *testing.T) {
	c, fn := manualClock(8)
	c.Seek(8 - 0.001)
	c.Play()

	fn.Advance(40 * time.Millisecond)
	assert.False(t, c.Step())

	s := c.State()
	assert.Equal(t, 8.0, s.CurrentTime)
	assert.False(t, s.Playing)

	// Further steps do nothing
	fn.Advance(time.Second)
	assert.False(t, c.Step())
	assert.Equal(t, 8.0, c.State().CurrentTime)
}

func TestPlayIsIdempotent(t *testing.T) {
	c, fn := manualClock(10)
	c.Play()
	fn.Advance(time.Second)

	// A second Play must not reset the delta baseline
	c.Play()
	c.Step()
	assert.InDelta(t, 1.0, c.State().CurrentTime, 1e-9)
	c.Pause()
}

func TestPauseCancelsPendingAdvance(t *testing.T) {
	c, fn := manualClock(10)
	c.Play()
	fn.Advance(time.Second)
	c.Pause()

	fn.Advance(time.Second)
	assert.False(t, c.Step())
	assert.Equal(t, 0.0, c.State().CurrentTime)
	assert.False(t, c.State().Playing)
}

func TestStaleGenerationIgnored(t *testing.T) {
	c, fn := manualClock(10)
	c.Play()
	c.mu.Lock()
	stale := c.gen
	c.mu.Unlock()

	c.Reset()
	c.Play()
	fn.Advance(time.Second)

	// A tick scheduled by the previous run must not advance the new one.
	assert.False(t, c.step(stale))
	assert.Equal(t, 0.0, c.State().CurrentTime)
	c.Pause()
}

func TestResetAlwaysRewindsAndStops(t *testing.T) {
	c, fn := manualClock(10)
	c.Play()
	fn.Advance(3 * time.Second)
	c.Step()
	require.Equal(t, 3.0, c.State().CurrentTime)

	c.Reset()
	s := c.State()
	assert.Equal(t, 0.0, s.CurrentTime)
	assert.False(t, s.Playing)

	// From a paused state too
	c.Seek(5)
	c.Reset()
	assert.Equal(t, State{CurrentTime: 0, TotalDuration: 10}, c.State())
}

func TestSetTotalReclamps(t *testing.T) {
	c, _ := manualClock(10)
	c.Seek(9)
	c.SetTotal(6)
	assert.Equal(t, 6.0, c.State().CurrentTime)
	assert.Equal(t, 6.0, c.State().TotalDuration)
}

func TestListenersSeeChanges(t *testing.T) {
	c, fn := manualClock(10)

	var mu sync.Mutex
	var seen []State
	c.OnChange(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Play()
	fn.Advance(500 * time.Millisecond)
	c.Step()
	c.Pause()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.True(t, seen[0].Playing)
	assert.InDelta(t, 0.5, seen[1].CurrentTime, 1e-9)
	assert.False(t, seen[2].Playing)
}

func TestFrameLoopRunsToEnd(t *testing.T) {
	c := New(0.05, WithFrameInterval(time.Millisecond))

	done := make(chan struct{})
	var once sync.Once
	c.OnChange(func(s State) {
		if !s.Playing && s.CurrentTime == s.TotalDuration {
			once.Do(func() { close(done) })
		}
	})
	c.Play()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frame loop did not reach the end")
	}
	assert.Equal(t, 0.05, c.State().CurrentTime)
}

func TestPauseDuringSlowTickDeliveryIsDeliveredLast(t *testing.T) {
	c, fn := manualClock(10)
	c.Play()

	var mu sync.Mutex
	var last State
	calls := 0
	entered := make(chan struct{})
	release := make(chan struct{})
	c.OnChange(func(s State) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})

	fn.Advance(time.Second)
	stepped := make(chan struct{})
	go func() {
		c.Step()
		close(stepped)
	}()
	<-entered

	paused := make(chan struct{})
	go func() {
		c.Pause()
		close(paused)
	}()
	// Give Pause time to reach delivery while the tick is still in it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-stepped
	<-paused

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, last.Playing)
	assert.Equal(t, c.State(), last)
}

func TestSupersededStateIsSkipped(t *testing.T) {
	c, _ := manualClock(10)

	var seen []State
	c.OnChange(func(s State) { seen = append(seen, s) })

	c.notify(State{CurrentTime: 2}, 2)
	c.notify(State{CurrentTime: 1, Playing: true}, 1)

	require.Len(t, seen, 1)
	assert.Equal(t, 2.0, seen[0].CurrentTime)
}
