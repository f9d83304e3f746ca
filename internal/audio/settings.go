package audio

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ivlev/trailer2video/internal/store"
)

// SettingsKey is the KV key holding audio settings.
const SettingsKey = "trailer-audio-settings"

type Settings struct {
	Enabled         bool    `json:"enabled"`
	Volume          float64 `json:"volume"`
	SelectedTrackID string  `json:"selectedTrackId"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:         false,
		Volume:          0.7,
		SelectedTrackID: DefaultTrackID,
	}
}

// EffectiveVolume mutes instead of stopping when audio is disabled.
func (s Settings) EffectiveVolume() float64 {
	if !s.Enabled {
		return 0
	}
	return s.Volume
}

// LoadSettings merges stored settings over the defaults, so keys missing
// from the stored blob keep their default values. Unreadable or corrupt
// data is logged and ignored.
func LoadSettings(kv store.KV) Settings {
	settings := DefaultSettings()

	raw, ok, err := kv.Get(SettingsKey)
	if err != nil {
		slog.Error("Failed to load audio settings", "error", err)
		return settings
	}
	if !ok {
		return settings
	}

	merged := settings
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		slog.Error("Failed to parse audio settings", "error", err)
		return settings
	}
	merged.Volume = clampVolume(merged.Volume)
	return merged
}

func SaveSettings(kv store.KV, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode audio settings: %w", err)
	}
	if err := kv.Set(SettingsKey, string(data)); err != nil {
		return fmt.Errorf("failed to save audio settings: %w", err)
	}
	return nil
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
