package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/ivlev/trailer2video/internal/config"
	"github.com/ivlev/trailer2video/internal/profile"
	"github.com/ivlev/trailer2video/internal/recorder"
	"github.com/ivlev/trailer2video/internal/system"
	"github.com/ivlev/trailer2video/internal/timeline"
	"github.com/ivlev/trailer2video/internal/tui"
)

const title = "THE CURSE OF PARSI FALIA"

func main() {
	// .env is optional
	_ = godotenv.Load()

	configPtr := flag.String("config", "trailer2video.yaml", "Path to the YAML config")
	modePtr := flag.String("mode", "play", "Mode: play, export, frame, script")
	atPtr := flag.Float64("at", 0, "Time in seconds for -mode frame")
	outPtr := flag.String("out", "", "Output path for -mode frame or for the exported script")
	importPtr := flag.String("import", "", "Script YAML to load into the timeline (-mode script); \"latest\" picks the newest in -script-dir")
	scriptDirPtr := flag.String("script-dir", "scripts", "Directory for exported scripts")
	logLevelPtr := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logJSONPtr := flag.Bool("log-json", false, "Log as JSON")
	statsPtr := flag.Bool("stats", false, "Print a performance report after export and append it to benchmark.log")
	fpsPtr := flag.Int("fps", 0, "Export frame rate")
	namePtr := flag.String("name", "", "Display name saved in your profile")
	layoutPtr := flag.String("layout", "", "Timeline layout saved in your profile: compact, detailed")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	cfg.ApplyEnv()
	if *logLevelPtr != "" {
		cfg.LogLevel = *logLevelPtr
	}
	if *logJSONPtr {
		cfg.LogJSON = true
	}
	if *statsPtr {
		cfg.ShowStats = true
	}
	if *fpsPtr > 0 {
		cfg.Export.FPS = *fpsPtr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}

	interactive := *modePtr == "play" && term.IsTerminal(int(os.Stdout.Fd()))
	setupLogging(cfg, interactive)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *modePtr {
	case "play", "export":
		if err := system.CheckTools("ffmpeg", "ffprobe"); err != nil {
			log.Fatalf("[-] %v", err)
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("[-] Startup failed: %v", err)
	}
	defer a.Close()

	switch *modePtr {
	case "play":
		err = runPlay(ctx, a, *namePtr, *layoutPtr, interactive)
	case "export":
		err = runExport(ctx, a)
	case "frame":
		err = runFrame(a, *atPtr, *outPtr)
	case "script":
		err = runScript(a, *importPtr, *scriptDirPtr, *outPtr)
	default:
		err = fmt.Errorf("unknown mode %q", *modePtr)
	}
	if err != nil {
		a.Close()
		log.Fatalf("[-] %v", err)
	}
}

// setupLogging routes slog to a file while the TUI owns the terminal.
func setupLogging(cfg *config.Config, interactive bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	out := os.Stderr
	if interactive {
		if f, err := os.OpenFile("trailer2video.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			out = f
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runPlay(ctx context.Context, a *app, name, layout string, interactive bool) error {
	if !interactive {
		return fmt.Errorf("play mode needs a terminal, use -mode export")
	}

	opts := tui.Options{Title: title}
	loadProfile(ctx, a, name, layout, &opts)

	events := make(chan recorder.Event, 4)
	a.recorder.AddListener(func(e recorder.Event) {
		if e.Stage != recorder.StageComplete && e.Stage != recorder.StageError {
			return
		}
		select {
		case events <- e:
		default:
		}
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.player.Run(runCtx)

	_, err := tea.NewProgram(tui.New(runCtx, a.player, a.audio, events, opts)).Run()
	a.player.Pause()
	return err
}

// loadProfile applies the caller's saved name and layout, saving any new
// values given on the command line.
func loadProfile(ctx context.Context, a *app, name, layout string, opts *tui.Options) {
	caller := os.Getenv("USER")
	svc, err := profile.NewService(a.kv, caller)
	if err != nil {
		slog.Warn("Profile service unavailable", "error", err)
		return
	}
	ctx = profile.WithCaller(ctx, caller)

	if name != "" {
		if err := svc.SaveCallerUserProfile(ctx, profile.UserProfile{Name: name}); err != nil {
			slog.Warn("Failed to save profile", "error", err)
		}
	}
	if p, err := svc.GetCallerUserProfile(ctx); err == nil {
		opts.User = p.Name
	}

	if layout != "" {
		if err := svc.SaveUserConfiguration(ctx, profile.TimelineConfiguration{TimelineLayout: layout}); err != nil {
			slog.Warn("Failed to save timeline configuration", "error", err)
		}
	}
	if c, err := svc.GetUserConfiguration(ctx); err == nil {
		opts.Layout = c.TimelineLayout
	}
}

func runFrame(a *app, at float64, out string) error {
	if out == "" {
		out = fmt.Sprintf("frame_%06.2f.png", at)
	}
	a.player.Seek(at)

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := a.canvas.EncodePNG(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("[+++] Frame at %.2fs saved: %s\n", a.player.Playback().CurrentTime, out)
	return nil
}

func runScript(a *app, importPath, dir, out string) error {
	if importPath != "" {
		if importPath == "latest" {
			latest, err := timeline.FindLatestScript(dir)
			if err != nil {
				return err
			}
			importPath = latest
			fmt.Printf("[*] Selected script: %s\n", importPath)
		}
		script, err := timeline.ReadScript(importPath)
		if err != nil {
			return err
		}
		if err := a.player.ReplaceSegments(script.Segments); err != nil {
			return err
		}
		if err := a.library.Preload(context.Background(), timeline.AssetKeys(script.Segments)); err != nil {
			return err
		}
		fmt.Printf("[+++] Imported %d segments (%.1fs) from %s\n",
			len(script.Segments), timeline.TotalDuration(script.Segments), importPath)
		return nil
	}

	if out == "" {
		out = timeline.ScriptPath(dir)
	}
	segments := a.player.Segments()
	script := &timeline.Script{Version: "1", Title: title, Segments: segments}
	if err := timeline.WriteScript(script, out); err != nil {
		return err
	}
	fmt.Printf("[+++] Script saved: %s (%d segments, %.1fs)\n", out, len(segments), timeline.TotalDuration(segments))
	return nil
}
