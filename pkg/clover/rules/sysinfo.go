package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// systemStats reads machine-wide load for the system info rule. The cpu
// probe blocks for its one-second sampling window, which is fine inside a
// capture cycle.
func systemStats(ctx context.Context) (string, error) {
	percents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return "", fmt.Errorf("reading cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("reading memory: %w", err)
	}
	cpuPct := 0.0
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	return fmt.Sprintf("CPU is at %.0f percent and memory is at %.0f percent.",
		cpuPct, vm.UsedPercent), nil
}
