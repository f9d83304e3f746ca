package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPublisher(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := NewLocalPublisher(dir)
	require.NoError(t, err)

	loc, err := p.Publish(context.Background(), "trailer.webm", strings.NewReader("chunk1chunk2"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(loc))

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "chunk1chunk2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalPublisherRejectsPaths(t *testing.T) {
	p, err := NewLocalPublisher(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.webm", "a/b.webm"} {
		_, err := p.Publish(context.Background(), name, strings.NewReader("x"))
		assert.Error(t, err, name)
	}
}

func TestLocalPublisherCanceled(t *testing.T) {
	dir := t.TempDir()
	p, err := NewLocalPublisher(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Publish(ctx, "trailer.webm", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dir, "trailer.webm"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGCSLocation(t *testing.T) {
	p := &GCSPublisher{bucket: "b", objectPrefix: "exports"}
	assert.Equal(t, "exports/t.webm", p.objectName("t.webm"))
	assert.Equal(t, "gs://b/exports/t.webm", p.location(p.objectName("t.webm")))

	p.publicBaseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/exports/my%20trailer.webm", p.location("exports/my trailer.webm"))

	p.objectPrefix = ""
	assert.Equal(t, "t.webm", p.objectName("t.webm"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/webm", contentType("a.webm"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}
