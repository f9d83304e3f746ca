package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostStats is a point-in-time snapshot of machine and process load,
// appended to the export report.
type HostStats struct {
	CPUPercent     float64
	CPUCores       int
	MemUsedPercent float64
	MemTotalMB     uint64
	ProcessRSSMB   uint64
	Goroutines     int
	FrameBuffers   int64
}

// CollectStats samples CPU usage over interval. Individual probes that
// fail leave their fields zero.
func CollectStats(ctx context.Context, interval time.Duration) HostStats {
	stats := HostStats{
		CPUCores:     runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		FrameBuffers: FramesAllocated(),
	}

	if pct, err := cpu.PercentWithContext(ctx, interval, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemUsedPercent = vm.UsedPercent
		stats.MemTotalMB = vm.Total / 1024 / 1024
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSSMB = info.RSS / 1024 / 1024
		}
	}
	return stats
}

func (s HostStats) String() string {
	return fmt.Sprintf("CPU: %.1f%% of %d cores | RAM: %.1f%% of %d MB | RSS: %d MB | goroutines: %d | frame buffers: %d",
		s.CPUPercent, s.CPUCores, s.MemUsedPercent, s.MemTotalMB, s.ProcessRSSMB, s.Goroutines, s.FrameBuffers)
}
