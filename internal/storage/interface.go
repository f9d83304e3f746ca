package storage

import (
	"context"
	"io"
)

// Publisher delivers a finished export and reports where it ended up.
type Publisher interface {
	// Publish stores the content of r under name and returns its location
	// (a file path or URL).
	Publish(ctx context.Context, name string, r io.Reader) (string, error)
}
