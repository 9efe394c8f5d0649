package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// newSelfProcess is swapped in tests to simulate a failed lookup.
var newSelfProcess = func() (*process.Process, error) {
	return process.NewProcess(int32(os.Getpid()))
}

// StatsWorker periodically logs the server's own resource usage next to
// the live session count. Purely informational; losing a tick is fine.
type StatsWorker struct {
	log      *slog.Logger
	interval time.Duration
	sessions func() int
}

func NewStatsWorker(log *slog.Logger, interval time.Duration, sessions func() int) *StatsWorker {
	return &StatsWorker{log: log, interval: interval, sessions: sessions}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	// An unreadable own process is not worth restart-looping over; the
	// worker is informational, so it logs once and bows out.
	p, err := newSelfProcess()
	if err != nil {
		w.log.Error("Self stats unavailable, disabling stats worker", "error", err)
		return nil
	}

	w.log.Info("Starting stats worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Server stats",
				"sessions", w.sessions(),
				"cpu_percent", cpu,
				"ram_bytes", rss)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
