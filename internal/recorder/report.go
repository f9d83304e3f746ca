package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/trailer2video/internal/system"
)

// FPS is the effective capture rate of the run.
func (r Result) FPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

// Report formats the performance summary printed after an export.
func Report(res Result, stats system.HostStats) string {
	audio := "no"
	if res.WithAudio {
		audio = "yes"
	}
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Total Time: %.2fs\n"+
			"Frames: %d\n"+
			"Effective FPS: %.2f\n"+
			"Chunks: %d (%d bytes)\n"+
			"Audio: %s\n"+
			"Host: %s\n"+
			"----------------------------\n",
		res.Elapsed.Seconds(), res.Frames, res.FPS(), res.Chunks, res.Bytes, audio, stats,
	)
}

// BenchmarkLine is the one-line form appended to benchmark.log.
func BenchmarkLine(res Result, stats system.HostStats, at time.Time) string {
	return fmt.Sprintf("[%s] Output: %s | Frames: %d | Total: %.2fs | FPS: %.2f | Bytes: %d | CPU: %.1f%% | RSS: %d MB\n",
		at.Format("2006-01-02 15:04:05"),
		filepath.Base(res.Location),
		res.Frames,
		res.Elapsed.Seconds(),
		res.FPS(),
		res.Bytes,
		stats.CPUPercent,
		stats.ProcessRSSMB,
	)
}

func AppendBenchmark(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
