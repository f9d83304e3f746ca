package timeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDuration = errors.New("segment duration must be positive")
	ErrIndexOutOfRange = errors.New("segment index out of range")
	ErrDuplicateID     = errors.New("duplicate segment id")
	ErrEmptyID         = errors.New("segment id is empty")
	ErrEmptyTimeline   = errors.New("timeline has no segments")
)

// Position is the result of resolving a time value against a timeline.
type Position struct {
	Index   int
	Segment Segment
	Offset  float64 // start of the segment on the global time axis
	Local   float64 // time since the segment became active
}

// TotalDuration is the sum of all segment durations.
func TotalDuration(segments []Segment) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.Duration
	}
	return total
}

// Offsets returns the cumulative start time of every segment.
func Offsets(segments []Segment) []float64 {
	offsets := make([]float64, len(segments))
	acc := 0.0
	for i, s := range segments {
		offsets[i] = acc
		acc += s.Duration
	}
	return offsets
}

// Locate finds the segment whose half-open interval [offset, offset+duration) contains t.
// It returns false for an empty timeline, for negative t and for t >= total duration.
func Locate(segments []Segment, t float64) (Position, bool) {
	if t < 0 || math.IsNaN(t) {
		return Position{}, false
	}

	acc := 0.0
	for i, s := range segments {
		if t >= acc && t < acc+s.Duration {
			return Position{Index: i, Segment: s, Offset: acc, Local: t - acc}, true
		}
		acc += s.Duration
	}
	return Position{}, false
}

// ValidDuration reports whether d can be assigned to a segment.
func ValidDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

// WithDuration returns a copy of segments where only segments[index].Duration is replaced.
// The result shares no slices or title cards with the input.
func WithDuration(segments []Segment, index int, d float64) ([]Segment, error) {
	if index < 0 || index >= len(segments) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(segments))
	}
	if !ValidDuration(d) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}

	updated := Clone(segments)
	updated[index].Duration = d
	return updated, nil
}

// Validate checks the invariants every stored or imported timeline must hold.
func Validate(segments []Segment) error {
	if len(segments) == 0 {
		return ErrEmptyTimeline
	}

	seen := make(map[string]int, len(segments))
	for i, s := range segments {
		if s.ID == "" {
			return fmt.Errorf("%w at index %d", ErrEmptyID, i)
		}
		if prev, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w %q at index %d and %d", ErrDuplicateID, s.ID, prev, i)
		}
		seen[s.ID] = i
		if !ValidDuration(s.Duration) {
			return fmt.Errorf("%w: segment %q has %v", ErrInvalidDuration, s.ID, s.Duration)
		}
	}
	return nil
}

// Clone deep-copies a timeline so edits never alias a caller's slices.
func Clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = s
		if s.Overlays != nil {
			out[i].Overlays = append([]string(nil), s.Overlays...)
		}
		if s.TitleCard != nil {
			tc := *s.TitleCard
			if tc.Lines != nil {
				tc.Lines = append([]string(nil), tc.Lines...)
			}
			out[i].TitleCard = &tc
		}
	}
	return out
}

// AssetKeys collects the distinct asset keys referenced by the timeline, in first-use order.
func AssetKeys(segments []Segment) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, s := range segments {
		for _, k := range s.AssetKeys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
