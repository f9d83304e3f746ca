package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/ivlev/trailer2video/internal/system"
)

// FFplayTransport plays a file through a headless ffplay process. Seeking
// or changing volume while playing restarts the process at the current
// position.
type FFplayTransport struct {
	mu       sync.Mutex
	path     string
	duration float64
	position float64
	volume   float64

	cmd       *exec.Cmd
	cancel    context.CancelFunc
	startedAt time.Time
	now       func() time.Time
}

func NewFFplayTransport() *FFplayTransport {
	return &FFplayTransport{volume: 1, now: time.Now}
}

func (f *FFplayTransport) Load(path string, onReady func()) {
	f.mu.Lock()
	f.stopLocked()
	f.path = path
	f.duration = 0
	f.position = 0
	f.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		d, err := system.GetMediaDuration(ctx, path)
		if err != nil {
			slog.Error("Audio loading error", "path", path, "error", err)
			return
		}

		f.mu.Lock()
		if f.path != path {
			f.mu.Unlock()
			return
		}
		f.duration = d
		f.mu.Unlock()
		onReady()
	}()
}

func (f *FFplayTransport) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positionLocked()
}

func (f *FFplayTransport) positionLocked() float64 {
	pos := f.position
	if f.cmd != nil {
		pos += f.now().Sub(f.startedAt).Seconds()
	}
	if f.duration > 0 && pos > f.duration {
		pos = f.duration
	}
	return pos
}

func (f *FFplayTransport) SetPosition(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t < 0 {
		t = 0
	}
	playing := f.cmd != nil
	f.stopLocked()
	f.position = t
	if playing {
		if err := f.startLocked(); err != nil {
			slog.Warn("Audio restart after seek failed", "error", err)
		}
	}
}

func (f *FFplayTransport) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v == f.volume {
		return
	}
	f.volume = v
	if f.cmd != nil {
		pos := f.positionLocked()
		f.stopLocked()
		f.position = pos
		if err := f.startLocked(); err != nil {
			slog.Warn("Audio restart after volume change failed", "error", err)
		}
	}
}

func (f *FFplayTransport) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd != nil {
		return nil
	}
	return f.startLocked()
}

func (f *FFplayTransport) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
}

func (f *FFplayTransport) Close() error {
	f.Pause()
	return nil
}

func (f *FFplayTransport) startLocked() error {
	if f.path == "" {
		return ErrNotReady
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffplay", ffplayArgs(f.path, f.position, f.volume)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffplay: %w", err)
	}
	f.cmd = cmd
	f.cancel = cancel
	f.startedAt = f.now()

	go func() {
		_ = cmd.Wait()
		f.mu.Lock()
		defer f.mu.Unlock()
		// Reached the end on its own
		if f.cmd == cmd {
			f.position = f.positionLocked()
			f.cmd = nil
			f.cancel = nil
			cancel()
		}
	}()
	return nil
}

func (f *FFplayTransport) stopLocked() {
	if f.cmd == nil {
		return
	}
	f.position = f.positionLocked()
	f.cancel()
	f.cmd = nil
	f.cancel = nil
}

func ffplayArgs(path string, from, volume float64) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(from, 'f', 3, 64),
		"-volume", strconv.Itoa(int(clampVolume(volume)*100 + 0.5)),
		path,
	}
}
