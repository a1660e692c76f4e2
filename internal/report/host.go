package report

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine a run was measured on
type HostInfo struct {
	CPUModel     string `json:"cpu_model" yaml:"cpu_model"`
	CPUThreads   int    `json:"cpu_threads" yaml:"cpu_threads"`
	RAMBytes     uint64 `json:"ram_bytes" yaml:"ram_bytes"`
	OS           string `json:"os" yaml:"os"`
	Architecture string `json:"architecture" yaml:"architecture"`
}

// DetectHost gathers host information. Fields that cannot be read are left
// empty; the error reports the first failure.
func DetectHost(ctx context.Context) (*HostInfo, error) {
	info := &HostInfo{
		CPUThreads:   runtime.NumCPU(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	var firstErr error
	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		firstErr = fmt.Errorf("failed to read cpu info: %w", err)
	} else if len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	if threads, err := cpu.CountsWithContext(ctx, true); err == nil && threads > 0 {
		info.CPUThreads = threads
	}

	if vmem, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to read memory info: %w", err)
		}
	} else {
		info.RAMBytes = vmem.Total
	}

	return info, firstErr
}

// FormatRAM renders a byte count in GiB
func FormatRAM(bytes uint64) string {
	return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
}
