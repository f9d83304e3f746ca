package timeline

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ivlev/trailer2video/internal/store"
)

// StorageKey is the KV key holding the saved segment sequence.
const StorageKey = "trailer-timeline-segments"

// Load returns the saved timeline, or the default script when nothing usable is stored.
// Read and parse failures are logged and treated as "no saved state".
func Load(kv store.KV) []Segment {
	raw, ok, err := kv.Get(StorageKey)
	if err != nil {
		slog.Error("Failed to load saved timeline", "error", err)
		return DefaultScript()
	}
	if !ok {
		return DefaultScript()
	}

	var segments []Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		slog.Error("Failed to parse saved timeline", "error", err)
		return DefaultScript()
	}
	if err := Validate(segments); err != nil {
		slog.Warn("Ignoring saved timeline", "error", err)
		return DefaultScript()
	}

	return segments
}

// Save stores the segment sequence verbatim.
func Save(kv store.KV, segments []Segment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	if err := kv.Set(StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	return nil
}
