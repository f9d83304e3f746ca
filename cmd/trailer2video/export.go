package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/skip2/go-qrcode"
	"golang.org/x/term"

	"github.com/ivlev/trailer2video/internal/recorder"
	"github.com/ivlev/trailer2video/internal/system"
)

const audioReadyTimeout = 3 * time.Second

func runExport(ctx context.Context, a *app) error {
	total := a.player.Playback().TotalDuration
	fmt.Printf("[*] Exporting %d segments (%.1fs) at %dx%d @ %d FPS\n",
		len(a.player.Segments()), total, a.cfg.Canvas.Width, a.cfg.Canvas.Height, a.cfg.Export.FPS)

	waitForAudio(ctx, a)

	a.recorder.AddListener(progressListener(term.IsTerminal(int(os.Stdout.Fd()))))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.player.Run(runCtx)

	if err := a.player.Export(runCtx); err != nil {
		return err
	}

	res := a.recorder.Wait()
	fmt.Println()
	if res.Err != nil {
		return fmt.Errorf("export failed: %w", res.Err)
	}

	fmt.Printf("[+++] Video exported successfully! Result: %s\n", res.Location)
	if isURL(res.Location) {
		printQR(res.Location)
	}

	if a.cfg.ShowStats {
		stats := system.CollectStats(ctx, 200*time.Millisecond)
		fmt.Print(recorder.Report(res, stats))
		if err := recorder.AppendBenchmark("benchmark.log", recorder.BenchmarkLine(res, stats, time.Now())); err != nil {
			fmt.Printf("[!] Could not write benchmark.log: %v\n", err)
		}
	}
	return nil
}

// waitForAudio gives the bed time to load so it can be mixed into the
// export. On timeout the export continues without audio.
func waitForAudio(ctx context.Context, a *app) {
	if !a.audio.Settings().Enabled || a.audio.IsReady() {
		return
	}

	deadline := time.NewTimer(audioReadyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for !a.audio.IsReady() {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			fmt.Println("[!] Audio not ready, exporting video only")
			return
		case <-ticker.C:
		}
	}
}

func progressListener(interactive bool) func(recorder.Event) {
	if !interactive {
		last := -1
		return func(e recorder.Event) {
			switch e.Stage {
			case recorder.StageProgress:
				if step := e.Progress / 10; step != last {
					last = step
					slog.Info("Recording", "progress", e.Progress)
				}
			case recorder.StageFinishing:
				slog.Info("Finalizing video")
			}
		}
	}

	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("[cyan][REC][reset] Recording..."),
	)
	return func(e recorder.Event) {
		switch e.Stage {
		case recorder.StageProgress:
			_ = bar.Set(e.Progress)
		case recorder.StageFinishing:
			bar.Describe("[cyan][REC][reset] Finalizing...")
		case recorder.StageComplete:
			_ = bar.Finish()
		}
	}
}

func isURL(loc string) bool {
	return strings.HasPrefix(loc, "https://") || strings.HasPrefix(loc, "http://")
}

func printQR(url string) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		slog.Warn("Failed to build QR code", "error", err)
		return
	}
	fmt.Println(q.ToSmallString(false))
}
