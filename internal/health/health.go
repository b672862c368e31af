package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger checks one dependency.
type Pinger func(ctx context.Context) error

type dependency struct {
	name     string
	ping     Pinger
	required bool
}

type HealthChecker struct {
	deps    []dependency
	timeout time.Duration
}

type HealthStatus struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyHealth `json:"dependencies"`
	System       *SystemHealth               `json:"system,omitempty"`
}

type DependencyHealth struct {
	Status       string `json:"status"`
	Required     bool   `json:"required"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

type SystemHealth struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	DiskPercent   float64 `json:"disk_percent"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{timeout: 2 * time.Second}
}

// Require registers a dependency whose failure makes the service unhealthy.
func (h *HealthChecker) Require(name string, ping Pinger) *HealthChecker {
	h.deps = append(h.deps, dependency{name: name, ping: ping, required: true})
	return h
}

// Optional registers a dependency whose failure only degrades the service.
func (h *HealthChecker) Optional(name string, ping Pinger) *HealthChecker {
	h.deps = append(h.deps, dependency{name: name, ping: ping})
	return h
}

// CheckBasic pings every dependency. Status is "unhealthy" when a required
// dependency fails and "degraded" when only optional ones do.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "healthy", Dependencies: make(map[string]DependencyHealth, len(h.deps))}
	for _, d := range h.deps {
		dh := h.check(ctx, d)
		status.Dependencies[d.name] = dh
		if dh.Status == "healthy" {
			continue
		}
		if d.required {
			status.Status = "unhealthy"
		} else if status.Status == "healthy" {
			status.Status = "degraded"
		}
	}
	return status
}

// CheckDetailed adds host resource usage to CheckBasic.
func (h *HealthChecker) CheckDetailed(ctx context.Context) HealthStatus {
	status := h.CheckBasic(ctx)
	status.System = systemStats()
	return status
}

func (h *HealthChecker) check(ctx context.Context, d dependency) DependencyHealth {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := d.ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return DependencyHealth{
			Status:       "unhealthy",
			Required:     d.required,
			ResponseTime: responseTime,
			Error:        err.Error(),
		}
	}
	return DependencyHealth{
		Status:       "healthy",
		Required:     d.required,
		ResponseTime: responseTime,
	}
}

func systemStats() *SystemHealth {
	s := &SystemHealth{}
	if cpuPercents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercents) > 0 {
		s.CPUPercent = cpuPercents[0]
	}
	if memStats, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = memStats.UsedPercent
		s.MemoryUsedMB = memStats.Used / 1024 / 1024
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		s.DiskPercent = diskStats.UsedPercent
	}
	return s
}
