package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalPublisher writes exports into an output directory.
type LocalPublisher struct {
	outputDir string
}

// NewLocalPublisher creates the output directory if needed.
func NewLocalPublisher(outputDir string) (*LocalPublisher, error) {
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", outputDir, err)
	}
	return &LocalPublisher{outputDir: outputDir}, nil
}

// Publish writes to a temporary file and renames it to name once complete.
func (p *LocalPublisher) Publish(ctx context.Context, name string, r io.Reader) (string, error) {
	if name != filepath.Base(name) || name == "." || name == "" {
		return "", fmt.Errorf("invalid export name %q", name)
	}
	final := filepath.Join(p.outputDir, name)

	tmp, err := os.CreateTemp(p.outputDir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", final, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}

	abs, err := filepath.Abs(final)
	if err != nil {
		return final, nil
	}
	return abs, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
