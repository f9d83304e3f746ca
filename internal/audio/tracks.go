package audio

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	ErrTrackNotFound = errors.New("audio track not found")
	ErrNotReady      = errors.New("audio source not ready")
	ErrDisabled      = errors.New("audio disabled")
)

type Track struct {
	ID    string
	Label string
	// Path is relative to the audio directory.
	Path string
}

var tracks = []Track{
	{ID: "trailer-bed-01", Label: "Cinematic Horror Bed", Path: "trailer-bed-01.mp3"},
}

// DefaultTrackID is the first catalog entry.
var DefaultTrackID = tracks[0].ID

func Tracks() []Track {
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out
}

func FindTrack(id string) (Track, error) {
	for _, t := range tracks {
		if t.ID == id {
			return t, nil
		}
	}
	return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
}

// trackPath resolves id under dir, falling back to the default track.
func trackPath(dir, id string) string {
	t, err := FindTrack(id)
	if err != nil {
		t = tracks[0]
	}
	return filepath.Join(dir, t.Path)
}
