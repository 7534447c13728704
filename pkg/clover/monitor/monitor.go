// Package monitor watches the assistant's own footprint. It samples CPU
// and resident memory on a fixed interval and logs a warning when either
// crosses its configured limit. It never throttles and never speaks; the
// log line is the whole intervention.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/jholhewres/clover/pkg/clover/config"
)

// usage is one sample of the process footprint.
type usage struct {
	cpuPercent float64
	rssBytes   uint64
}

// Monitor runs the sampling loop.
type Monitor struct {
	interval time.Duration
	maxCPU   float64
	maxMemMB float64
	logger   *slog.Logger

	// sample is swappable for tests; the default reads gopsutil.
	sample func(ctx context.Context) (usage, error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New attaches to the current process.
func New(cfg config.MonitorConfig, logger *slog.Logger) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attaching to own process: %w", err)
	}

	interval := cfg.Interval.Std()
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Monitor{
		interval: interval,
		maxCPU:   cfg.MaxCPUPercent,
		maxMemMB: cfg.MaxMemoryMB,
		logger:   logger.With("component", "monitor"),
		sample: func(ctx context.Context) (usage, error) {
			// Percent(0) reports usage since the previous call; the first
			// call primes the baseline.
			cpu, err := proc.PercentWithContext(ctx, 0)
			if err != nil {
				return usage{}, fmt.Errorf("reading cpu: %w", err)
			}
			mem, err := proc.MemoryInfoWithContext(ctx)
			if err != nil {
				return usage{}, fmt.Errorf("reading memory: %w", err)
			}
			return usage{cpuPercent: cpu, rssBytes: mem.RSS}, nil
		},
		done: make(chan struct{}),
	}, nil
}

// Start begins sampling in the background.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	// prime the cpu baseline so the first real sample is a delta
	if _, err := m.sample(m.ctx); err != nil {
		m.logger.Debug("monitor: priming sample failed", "error", err)
	}

	go m.loop()
	m.logger.Info("monitor: started",
		"interval", m.interval,
		"max_cpu_percent", m.maxCPU,
		"max_memory_mb", m.maxMemMB,
	)
	return nil
}

// Stop halts the loop; waits at most one interval.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	select {
	case <-m.done:
	case <-time.After(m.interval + time.Second):
		m.logger.Warn("monitor: stop timed out")
	}
	m.logger.Info("monitor: stopped")
}

func (m *Monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick guards one sample pass; a panicking probe must not kill the loop.
func (m *Monitor) tick() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitor: sample pass panicked", "panic", r)
		}
	}()

	u, err := m.sample(m.ctx)
	if err != nil {
		m.logger.Debug("monitor: sample failed", "error", err)
		return
	}
	m.evaluate(u)
}

// evaluate applies the limits to one sample. Breaches are log-only.
func (m *Monitor) evaluate(u usage) {
	rssMB := float64(u.rssBytes) / (1024 * 1024)

	if m.maxCPU > 0 && u.cpuPercent > m.maxCPU {
		m.logger.Warn("monitor: cpu usage above limit",
			"cpu_percent", fmt.Sprintf("%.1f", u.cpuPercent),
			"limit_percent", m.maxCPU,
		)
	}
	if m.maxMemMB > 0 && rssMB > m.maxMemMB {
		m.logger.Warn("monitor: memory usage above limit",
			"rss_mb", fmt.Sprintf("%.1f", rssMB),
			"limit_mb", m.maxMemMB,
		)
	}
	m.logger.Debug("monitor: sample",
		"cpu_percent", fmt.Sprintf("%.1f", u.cpuPercent),
		"rss_mb", fmt.Sprintf("%.1f", rssMB),
	)
}
