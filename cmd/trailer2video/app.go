package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ivlev/trailer2video/internal/assets"
	"github.com/ivlev/trailer2video/internal/audio"
	"github.com/ivlev/trailer2video/internal/clock"
	"github.com/ivlev/trailer2video/internal/config"
	"github.com/ivlev/trailer2video/internal/player"
	"github.com/ivlev/trailer2video/internal/recorder"
	"github.com/ivlev/trailer2video/internal/renderer"
	"github.com/ivlev/trailer2video/internal/storage"
	"github.com/ivlev/trailer2video/internal/store"
	"github.com/ivlev/trailer2video/internal/system"
	"github.com/ivlev/trailer2video/internal/timeline"
)

// app holds every wired component of one trailer2video session.
type app struct {
	cfg       *config.Config
	kv        store.KV
	library   *assets.Library
	fonts     *renderer.Fonts
	canvas    *renderer.Canvas
	audio     *audio.Synchronizer
	publisher storage.Publisher
	recorder  *recorder.Recorder
	player    *player.Controller

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	kv, err := store.NewFileKV(cfg.Paths.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state dir: %w", err)
	}
	a.kv = kv

	a.library = assets.NewLibrary(cfg.Paths.AssetDir, assets.DefaultCatalog(), cfg.Canvas.Width, cfg.Canvas.Height)
	if err := a.library.Preload(ctx, timeline.AssetKeys(timeline.Load(kv))); err != nil {
		return nil, err
	}
	if n := a.library.Failed(); n > 0 {
		fmt.Printf("[!] %d assets could not be loaded and will be skipped\n", n)
	}

	fonts, err := renderer.LoadFonts()
	if err != nil {
		return nil, err
	}
	a.fonts = fonts
	a.closers = append(a.closers, fonts.Close)

	comp := renderer.NewCompositor(cfg.Canvas.Width, cfg.Canvas.Height, a.library, fonts)
	a.canvas = renderer.NewCanvas(comp)

	a.audio = audio.NewSynchronizer(kv, audio.NewFFplayTransport(), cfg.Paths.AudioDir)
	a.audio.Load()
	a.closers = append(a.closers, a.audio.Close)

	if a.publisher, err = newPublisher(ctx, cfg); err != nil {
		return nil, err
	}

	opts := recorder.Options{
		Width:         cfg.Canvas.Width,
		Height:        cfg.Canvas.Height,
		FPS:           cfg.Export.FPS,
		Codec:         pickCodec(ctx, cfg),
		Bitrate:       cfg.Export.Bitrate,
		Container:     cfg.Export.Container,
		FileName:      cfg.Export.FileName,
		ChunkInterval: cfg.Export.ChunkInterval,
	}
	a.recorder = recorder.New(a.canvas, a.publisher, opts, recorder.WithAudio(a.audio))

	a.player = player.New(kv, a.canvas, a.audio, a.recorder,
		player.WithStartDelay(cfg.Export.StartDelay),
		player.WithClockOptions(clock.WithFrameInterval(cfg.Canvas.FrameInterval)),
	)
	return a, nil
}

func newPublisher(ctx context.Context, cfg *config.Config) (storage.Publisher, error) {
	switch cfg.Storage.Type {
	case "gcs":
		p, err := storage.NewGCSPublisher(ctx, cfg.Storage.Bucket, cfg.Storage.ObjectPrefix, cfg.Storage.CredentialsFile, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS publisher: %w", err)
		}
		return p, nil
	default:
		return storage.NewLocalPublisher(cfg.Storage.OutputDir)
	}
}

// pickCodec keeps the configured codec when ffmpeg has it and otherwise
// falls back to another encoder for the same container.
func pickCodec(ctx context.Context, cfg *config.Config) string {
	candidates := []string{cfg.Export.Codec}
	if cfg.Export.Container == "webm" {
		candidates = append(candidates, "libvpx-vp9", "libvpx")
	}
	codec := system.PickEncoder(ctx, cfg.Export.Codec, candidates...)
	if codec != cfg.Export.Codec {
		slog.Warn("Configured codec unavailable", "codec", cfg.Export.Codec, "using", codec)
	}
	return codec
}

func (a *app) Close() {
	if c, ok := a.publisher.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}
}
