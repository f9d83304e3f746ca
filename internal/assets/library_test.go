package assets

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogResolve(t *testing.T) {
	c := DefaultCatalog()

	p, ok := c.Resolve("assets", "overlay-fog")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("assets", "generated", "overlay-fog.dim_1920x1080.png"), p)

	p, ok = c.Resolve("assets", "boards/deck.pdf#2")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("assets", "boards", "deck.pdf#2"), p)

	_, ok = c.Resolve("assets", "no-such-key")
	assert.False(t, ok)
}

func TestPreloadBestEffort(t *testing.T) {
	good := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range good.Pix {
		good.Pix[i] = 255
	}
	var calls atomic.Int32
	loader := func(ref string) (image.Image, error) {
		calls.Add(1)
		if filepath.Base(ref) == "broken.png" {
			return nil, errors.New("corrupt")
		}
		return good, nil
	}

	cat := Catalog{"ok": "ok.png", "bad": "broken.png"}
	lib := NewLibrary("root", cat, 8, 4, WithLoader(loader), WithWorkers(2))

	err := lib.Preload(context.Background(), []string{"ok", "bad", "ok", "", "ghost"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	img, ok := lib.Lookup("ok")
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	_, ok = lib.Lookup("bad")
	assert.False(t, ok)
	_, ok = lib.Lookup("ghost")
	assert.False(t, ok)

	results := lib.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "bad", results[0].Key)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, "ghost", results[1].Key)
	assert.ErrorIs(t, results[1].Err, ErrUnknownKey)
	assert.Equal(t, StatusReady, results[2].Status)
	assert.Equal(t, 2, lib.Failed())

	// Already attempted keys are not reloaded
	require.NoError(t, lib.Preload(context.Background(), []string{"ok", "bad"}))
	assert.EqualValues(t, 2, calls.Load())
}

func TestPreloadCanceled(t *testing.T) {
	lib := NewLibrary("root", Catalog{"a": "a.png"}, 4, 4, WithLoader(func(string) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lib.Preload(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := lib.Lookup("a")
	assert.False(t, ok)
}

func TestPreloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "still.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	lib := NewLibrary(dir, Catalog{"still": "still.png"}, 4, 4)
	require.NoError(t, lib.Preload(context.Background(), []string{"still"}))

	img, ok := lib.Lookup("still")
	require.True(t, ok)
	r, g, b, _ := img.At(2, 2).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
}
