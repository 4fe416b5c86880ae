package prep

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine a process runs on. Fields a probe could
// not fill are left zero.
type HostInfo struct {
	Hostname         string `json:"hostname,omitempty"`
	OS               string `json:"os"`
	Arch             string `json:"arch"`
	Platform         string `json:"platform,omitempty"`
	LogicalCPUs      int    `json:"logical_cpus,omitempty"`
	TotalMemoryBytes uint64 `json:"total_memory_bytes,omitempty"`
}

// ProbeHost collects HostInfo, returning every probe failure alongside
// whatever could be gathered.
func ProbeHost(ctx context.Context) (HostInfo, []error) {
	info := HostInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}
	var errs []error

	if h, err := host.InfoWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
	}
	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		errs = append(errs, err)
	} else {
		info.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		info.TotalMemoryBytes = vm.Total
	}
	return info, errs
}
