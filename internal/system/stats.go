package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector implements domain.MetricsSource from /proc.
// CPU usage is the busy share between successive FetchMetrics calls; the
// first call compares against the counters read at construction time.
type StatsCollector struct {
	procRoot string
	failures *prometheus.CounterVec
	logger   *slog.Logger

	mu           sync.Mutex
	prevCPUIdle  uint64
	prevCPUTotal uint64
}

// NewStatsCollector creates a collector reading from procRoot (usually "/proc").
// failures may be nil.
func NewStatsCollector(procRoot string, failures *prometheus.CounterVec, logger *slog.Logger) *StatsCollector {
	c := &StatsCollector{
		procRoot: procRoot,
		failures: failures,
		logger:   logger,
	}
	c.prevCPUIdle, c.prevCPUTotal, _ = c.cpuTimes()
	return c
}

func (c *StatsCollector) FetchMetrics(_ context.Context) domain.MetricsSnapshot {
	var snap domain.MetricsSnapshot

	if cpu, err := c.cpuUsage(); err != nil {
		c.unavailable(domain.MetricCPUUsage, err)
	} else {
		snap.CPUUsage = &cpu
	}

	if mem, err := c.memoryUsage(); err != nil {
		c.unavailable(domain.MetricMemoryUsage, err)
	} else {
		snap.MemoryUsage = &mem
	}

	return snap
}

func (c *StatsCollector) unavailable(metric string, err error) {
	c.logger.Warn("metric unavailable", "err", domain.ErrMetricUnavailable{Metric: metric, Err: err})
	if c.failures != nil {
		c.failures.WithLabelValues(metric).Inc()
	}
}

// --- CPU ---

// cpuUsage reads and advances the counters under one lock so that concurrent
// callers never diff against a newer baseline.
func (c *StatsCollector) cpuUsage() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idle, total, err := c.cpuTimes()
	if err != nil {
		return 0, err
	}
	if idle < c.prevCPUIdle || total < c.prevCPUTotal {
		c.prevCPUIdle, c.prevCPUTotal = idle, total
		return 0, errors.New("cpu counters went backwards")
	}

	idleDelta := float64(idle - c.prevCPUIdle)
	totalDelta := float64(total - c.prevCPUTotal)
	c.prevCPUIdle = idle
	c.prevCPUTotal = total

	if totalDelta <= 0 {
		return 0, errors.New("cpu counters did not advance")
	}
	return (1.0 - idleDelta/totalDelta) * 100.0, nil
}

func (c *StatsCollector) cpuTimes() (idle, total uint64, err error) {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "stat"))
	if err != nil {
		return 0, 0, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	// "cpu  user nice system idle iowait irq softirq steal guest guest_nice"
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("unexpected /proc/stat header %q", line)
	}

	var values [10]uint64
	for i := 1; i < len(fields) && i <= 10; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse /proc/stat field %d: %w", i, err)
		}
		values[i-1] = v
	}
	// guest time is already accounted in user/nice
	for _, v := range values[:8] {
		total += v
	}
	idle = values[3] + values[4] // idle + iowait
	return idle, total, nil
}

// --- RAM ---

func (c *StatsCollector) memoryUsage() (float64, error) {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "meminfo"))
	if err != nil {
		return 0, err
	}

	var memTotal, memAvailable uint64
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			fmt.Sscanf(line, "MemTotal: %d kB", &memTotal)
		case strings.HasPrefix(line, "MemAvailable:"):
			fmt.Sscanf(line, "MemAvailable: %d kB", &memAvailable)
		}
	}
	if memTotal == 0 {
		return 0, errors.New("MemTotal missing from meminfo")
	}
	return (1 - float64(memAvailable)/float64(memTotal)) * 100.0, nil
}
