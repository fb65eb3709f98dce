// Package sysinfo collects point-in-time system status: CPU, memory, disk,
// host and network counters.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

type Memory struct {
	Total       uint64  `json:"total" yaml:"total"`
	Available   uint64  `json:"available" yaml:"available"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

type Disk struct {
	Path        string  `json:"path" yaml:"path"`
	Total       uint64  `json:"total" yaml:"total"`
	Free        uint64  `json:"free" yaml:"free"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

type Host struct {
	Hostname        string        `json:"hostname" yaml:"hostname"`
	OS              string        `json:"os" yaml:"os"`
	Platform        string        `json:"platform" yaml:"platform"`
	PlatformVersion string        `json:"platform_version" yaml:"platform_version"`
	KernelVersion   string        `json:"kernel_version" yaml:"kernel_version"`
	Uptime          time.Duration `json:"uptime" yaml:"uptime"`
}

type Network struct {
	BytesSent uint64 `json:"bytes_sent" yaml:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv" yaml:"bytes_recv"`
}

// Snapshot is one collection pass. Sections that could not be read are left
// zero.
type Snapshot struct {
	CPUPercent float64   `json:"cpu_percent" yaml:"cpu_percent"`
	CPUModel   string    `json:"cpu_model" yaml:"cpu_model"`
	CPUCores   int       `json:"cpu_cores" yaml:"cpu_cores"`
	Memory     Memory    `json:"memory" yaml:"memory"`
	Disk       Disk      `json:"disk" yaml:"disk"`
	Host       Host      `json:"host" yaml:"host"`
	Network    Network   `json:"network" yaml:"network"`
	TakenAt    time.Time `json:"taken_at" yaml:"taken_at"`
}

// Collector reads system status through gopsutil.
type Collector struct {
	diskPath    string
	cpuInterval time.Duration
}

// CollectorOption configures a [Collector].
type CollectorOption func(*Collector)

// WithDiskPath selects the volume reported in [Snapshot.Disk].
func WithDiskPath(p string) CollectorOption {
	return func(c *Collector) {
		if p != "" {
			c.diskPath = p
		}
	}
}

// WithCPUInterval sets how long CPU usage is measured. Zero compares with
// the previous call.
func WithCPUInterval(d time.Duration) CollectorOption {
	return func(c *Collector) { c.cpuInterval = d }
}

func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{diskPath: defaultDiskPath()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultDiskPath() string {
	if runtime.GOOS == "windows" {
		if d := os.Getenv("SystemDrive"); d != "" {
			return d + `\`
		}
		return `C:\`
	}
	return "/"
}

// Collect reads every section. Failing sections are reported together in
// the returned error; the snapshot still carries the rest.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	s := Snapshot{TakenAt: time.Now()}
	var errs []error

	if pct, err := cpu.PercentWithContext(ctx, c.cpuInterval, false); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else if len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.CPUCores = n
	}
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		s.CPUModel = info[0].ModelName
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		s.Memory = Memory{Total: vm.Total, Available: vm.Available, UsedPercent: vm.UsedPercent}
	}

	if du, err := disk.UsageWithContext(ctx, c.diskPath); err != nil {
		errs = append(errs, fmt.Errorf("disk %s: %w", c.diskPath, err))
	} else {
		s.Disk = Disk{Path: du.Path, Total: du.Total, Free: du.Free, UsedPercent: du.UsedPercent}
	}

	if hi, err := host.InfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("host: %w", err))
	} else {
		s.Host = Host{
			Hostname:        hi.Hostname,
			OS:              hi.OS,
			Platform:        hi.Platform,
			PlatformVersion: hi.PlatformVersion,
			KernelVersion:   hi.KernelVersion,
			Uptime:          time.Duration(hi.Uptime) * time.Second,
		}
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	} else if len(counters) > 0 {
		s.Network = Network{BytesSent: counters[0].BytesSent, BytesRecv: counters[0].BytesRecv}
	}

	return s, errors.Join(errs...)
}
