// Package health periodically samples process/host resource usage and
// logs it alongside decode throughput.
package health

import (
	"context"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/kb9irk/ook433decode/internal/metrics"
)

// Sampler periodically logs CPU/memory usage alongside a snapshot of the
// decode counters. It never touches protocol state or the decode path; it
// is purely an operational diagnostic that runs on its own ticker,
// entirely outside the per-block critical path.
type Sampler struct {
	interval time.Duration
	metrics  *metrics.Metrics // optional; nil disables the decode-counter snapshot
}

// NewSampler returns a Sampler that logs at the given interval. An
// interval of zero disables sampling; Run becomes a no-op. m may be nil.
func NewSampler(interval time.Duration, m *metrics.Metrics) *Sampler {
	return &Sampler{interval: interval, metrics: m}
}

// Run blocks, sampling on a ticker until ctx is canceled. Intended to be
// run in its own goroutine by the CLI entry point.
func (s *Sampler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	percents, err := cpu.Percent(0, false)
	var cpuPct float64
	if err != nil {
		log.Printf("health: WARNING: cpu sample failed: %v", err)
	} else if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("health: WARNING: memory sample failed: %v", err)
		return
	}

	log.Printf("health: cpu=%.1f%% mem_used=%.1f%% mem_used_bytes=%d", cpuPct, vm.UsedPercent, vm.Used)

	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		log.Printf("health: decoded_total=%.0f rejected_total=%.0f blocks_processed_total=%.0f",
			sumByPrefix(snap, "ook433_decoded_total"),
			sumByPrefix(snap, "ook433_rejected_total"),
			snap["ook433_blocks_processed_total"])
	}
}

func sumByPrefix(snap map[string]float64, prefix string) float64 {
	var total float64
	for k, v := range snap {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			total += v
		}
	}
	return total
}
