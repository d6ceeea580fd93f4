/**
 * 主机信息采集
 * @author: sun977
 * @date: 2026.10.14
 * @description: 基于 gopsutil 采集主机信息，用于设备注册名和 Info/Health 命令
 */
package monitor

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pma-it-suite/daemon/internal/pkg/logger"
)

// SystemInfo 主机系统信息
// 单项采集失败时保留零值，不影响其它项
type SystemInfo struct {
	Hostname      string     `json:"hostname"`
	OSType        string     `json:"os_type"`
	OSRelease     string     `json:"os_release"`
	Platform      string     `json:"platform"`
	KernelVersion string     `json:"kernel_version"`
	Arch          string     `json:"arch"`
	CPUCount      int        `json:"cpu_count"`
	CPUSpeed      float64    `json:"cpu_speed"` // MHz
	LoadAvg       [3]float64 `json:"load_avg"`
	MemTotal      uint64     `json:"mem_total"`
	MemFree       uint64     `json:"mem_free"`
	DiskTotal     uint64     `json:"disk_total"`
	DiskFree      uint64     `json:"disk_free"`
	Uptime        uint64     `json:"uptime"`    // 秒
}

func warn(event string, err error) {
	logger.LogSystemEvent("Monitor", event, err.Error(), logger.WarnLevel, nil)
}

// GetSystemInfo 采集主机信息
func GetSystemInfo(ctx context.Context) *SystemInfo {
	info := &SystemInfo{
		OSType:   runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCount: runtime.NumCPU(),
	}

	if h, err := host.InfoWithContext(ctx); err != nil {
		warn("HostInfo", err)
	} else {
		info.Hostname = h.Hostname
		info.OSRelease = h.PlatformVersion
		info.Platform = h.Platform
		info.KernelVersion = h.KernelVersion
		info.Uptime = h.Uptime
		if h.KernelArch != "" {
			info.Arch = h.KernelArch
		}
	}

	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		warn("CPUInfo", err)
	} else if len(cpus) > 0 {
		info.CPUSpeed = cpus[0].Mhz
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		// windows 不支持
		logger.LogSystemEvent("Monitor", "LoadAvg", err.Error(), logger.DebugLevel, nil)
	} else {
		info.LoadAvg = [3]float64{avg.Load1, avg.Load5, avg.Load15}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		warn("Memory", err)
	} else {
		info.MemTotal = vm.Total
		info.MemFree = vm.Available
	}

	if du, err := diskUsage(ctx); err != nil {
		warn("Disk", err)
	} else {
		info.DiskTotal = du.Total
		info.DiskFree = du.Free
	}

	return info
}

func diskUsage(ctx context.Context) (*disk.UsageStat, error) {
	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil && runtime.GOOS == "windows" {
		du, err = disk.UsageWithContext(ctx, "C:")
	}
	return du, err
}

// Hostname 主机名，gopsutil 失败时退回 os.Hostname
func Hostname(ctx context.Context) string {
	if h, err := host.InfoWithContext(ctx); err == nil && h.Hostname != "" {
		return h.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown-host"
}

// HealthReport Health 命令返回的存活信息
type HealthReport struct {
	Status    string `json:"status"`
	Hostname  string `json:"hostname"`
	Uptime    uint64 `json:"uptime"`
	PID       int    `json:"pid"`
	Timestamp string `json:"timestamp"`
}

// GetHealthReport 生成存活信息
func GetHealthReport(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:    "alive",
		Hostname:  Hostname(ctx),
		PID:       os.Getpid(),
		Timestamp: logger.FormatTimestamp(time.Now()),
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		report.Uptime = up
	}
	return report
}
