// Package audio keeps a single audio bed aligned with the playback cursor.
//
// The Synchronizer never starts playback on its own: the player calls
// PlayAudio/PauseAudio/ResetAudio/SyncToTime as the clock changes state.
package audio

import (
	"log/slog"
	"sync"

	"github.com/ivlev/trailer2video/internal/store"
)

// Transport is a single playable audio source.
type Transport interface {
	// Load swaps the source. onReady is called at most once, after Load has
	// returned, when the new source can play.
	Load(path string, onReady func())
	Position() float64
	SetPosition(t float64)
	SetVolume(v float64)
	Play() error
	Pause()
	Close() error
}

// Mix describes the audio input for an export.
type Mix struct {
	Path   string
	Volume float64
}

type Synchronizer struct {
	mu        sync.Mutex
	kv        store.KV
	transport Transport
	dir       string

	settings Settings
	loaded   bool
	ready    bool
	src      string
	gen      uint64
}

func NewSynchronizer(kv store.KV, transport Transport, dir string) *Synchronizer {
	return &Synchronizer{
		kv:        kv,
		transport: transport,
		dir:       dir,
		settings:  DefaultSettings(),
	}
}

// Load reads persisted settings and binds the selected track.
func (s *Synchronizer) Load() {
	settings := LoadSettings(s.kv)

	s.mu.Lock()
	s.settings = settings
	s.loaded = true
	s.transport.SetVolume(settings.EffectiveVolume())
	s.bindLocked()
	s.mu.Unlock()
}

// bindLocked swaps the transport source when the selected track changed.
// The position at the time of the swap is restored once the new source is
// ready.
func (s *Synchronizer) bindLocked() {
	path := trackPath(s.dir, s.settings.SelectedTrackID)
	if path == s.src {
		return
	}

	restore := 0.0
	if s.src != "" {
		restore = s.transport.Position()
	}
	first := s.src == ""
	s.src = path
	s.ready = false
	s.gen++
	gen := s.gen

	slog.Debug("Loading audio track", "path", path, "restore", restore)
	s.transport.Load(path, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen || s.ready {
			return
		}
		s.ready = true
		if !first {
			s.transport.SetPosition(restore)
		}
		slog.Debug("Audio track ready", "path", path)
	})
}

// SyncToTime moves the transport to t if it is ready.
func (s *Synchronizer) SyncToTime(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		s.transport.SetPosition(t)
	}
}

// PlayAudio starts the transport at fromTime when audio is enabled and
// ready. Start failures are logged, never returned.
func (s *Synchronizer) PlayAudio(fromTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settings.Enabled || !s.ready {
		return
	}
	s.transport.SetPosition(fromTime)
	if err := s.transport.Play(); err != nil {
		slog.Warn("Audio play failed", "error", err)
	}
}

func (s *Synchronizer) PauseAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Pause()
}

func (s *Synchronizer) ResetAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Pause()
	s.transport.SetPosition(0)
}

func (s *Synchronizer) SetEnabled(enabled bool) {
	s.update(func(st *Settings) { st.Enabled = enabled })
}

func (s *Synchronizer) SetVolume(volume float64) {
	s.update(func(st *Settings) { st.Volume = clampVolume(volume) })
}

func (s *Synchronizer) SetSelectedTrack(id string) error {
	if _, err := FindTrack(id); err != nil {
		return err
	}
	s.update(func(st *Settings) { st.SelectedTrackID = id })
	return nil
}

func (s *Synchronizer) update(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.settings)
	if err := SaveSettings(s.kv, s.settings); err != nil {
		slog.Error("Failed to save audio settings", "error", err)
	}
	s.transport.SetVolume(s.settings.EffectiveVolume())
	if s.loaded {
		s.bindLocked()
	}
}

func (s *Synchronizer) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Synchronizer) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Synchronizer) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// MixSource returns the audio input for an export of the whole timeline.
func (s *Synchronizer) MixSource() (Mix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settings.Enabled {
		return Mix{}, ErrDisabled
	}
	if !s.ready {
		return Mix{}, ErrNotReady
	}
	return Mix{Path: s.src, Volume: s.settings.Volume}, nil
}

func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Pause()
	return s.transport.Close()
}
