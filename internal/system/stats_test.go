package system

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func writeProc(t *testing.T, dir, stat, meminfo string) {
	t.Helper()
	if stat != "" {
		if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if meminfo != "" {
		if err := os.WriteFile(filepath.Join(dir, "meminfo"), []byte(meminfo), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

const meminfo = `MemTotal:       16000000 kB
MemFree:         2000000 kB
MemAvailable:    4000000 kB
Buffers:          100000 kB
`

func TestStatsCollector(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// user nice system idle iowait irq softirq steal
	writeProc(t, dir, "cpu  100 0 100 700 100 0 0 0 0 0\ncpu0 1 2 3 4\n", meminfo)
	collector := NewStatsCollector(dir, nil, logger)

	// +150 busy, +50 idle, +0 iowait -> 75% busy
	writeProc(t, dir, "cpu  200 0 150 750 100 0 0 0 0 0\n", "")
	snap := collector.FetchMetrics(context.Background())

	if !snap.Complete() {
		t.Fatalf("expected complete snapshot, got %+v", snap)
	}
	if math.Abs(*snap.CPUUsage-75) > 1e-9 {
		t.Errorf("expected cpu usage 75, got %f", *snap.CPUUsage)
	}
	if math.Abs(*snap.MemoryUsage-75) > 1e-9 {
		t.Errorf("expected memory usage 75, got %f", *snap.MemoryUsage)
	}
}

func TestStatsCollectorMissingFiles(t *testing.T) {
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "failures"}, []string{"metric"})
	collector := NewStatsCollector(t.TempDir(), failures, slog.New(slog.NewTextHandler(io.Discard, nil)))

	snap := collector.FetchMetrics(context.Background())
	if snap.CPUUsage != nil || snap.MemoryUsage != nil {
		t.Fatalf("expected both metrics absent, got %+v", snap)
	}
	if got := testutil.ToFloat64(failures.WithLabelValues(domain.MetricCPUUsage)); got != 1 {
		t.Errorf("expected 1 cpu failure, got %f", got)
	}
	if got := testutil.ToFloat64(failures.WithLabelValues(domain.MetricMemoryUsage)); got != 1 {
		t.Errorf("expected 1 memory failure, got %f", got)
	}
}

func TestStatsCollectorCountersNotAdvanced(t *testing.T) {
	dir := t.TempDir()
	writeProc(t, dir, "cpu  100 0 100 700 100 0 0 0 0 0\n", meminfo)
	collector := NewStatsCollector(dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	snap := collector.FetchMetrics(context.Background())
	if snap.CPUUsage != nil {
		t.Errorf("expected cpu usage to be absent, got %f", *snap.CPUUsage)
	}
	if snap.MemoryUsage == nil {
		t.Errorf("expected memory usage to be present")
	}
}

func TestStatsCollectorCountersWentBackwards(t *testing.T) {
	dir := t.TempDir()
	writeProc(t, dir, "cpu  200 0 150 750 100 0 0 0 0 0\n", meminfo)
	collector := NewStatsCollector(dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	writeProc(t, dir, "cpu  100 0 100 700 100 0 0 0 0 0\n", "")
	if snap := collector.FetchMetrics(context.Background()); snap.CPUUsage != nil {
		t.Fatalf("expected cpu usage to be absent, got %f", *snap.CPUUsage)
	}

	// the lower reading becomes the new baseline
	writeProc(t, dir, "cpu  150 0 100 750 100 0 0 0 0 0\n", "")
	snap := collector.FetchMetrics(context.Background())
	if snap.CPUUsage == nil || math.Abs(*snap.CPUUsage-50) > 1e-9 {
		t.Errorf("expected cpu usage 50, got %v", snap.CPUUsage)
	}
}

func TestStatsCollectorConcurrentReads(t *testing.T) {
	dir := t.TempDir()
	writeStat := func(step int) {
		tmp := filepath.Join(dir, "stat.tmp")
		line := fmt.Sprintf("cpu  %d 0 0 %d 0 0 0 0 0 0\n", 100+10*step, 100+10*step)
		if err := os.WriteFile(tmp, []byte(line), 0o644); err != nil {
			t.Error(err)
			return
		}
		if err := os.Rename(tmp, filepath.Join(dir, "stat")); err != nil {
			t.Error(err)
		}
	}
	writeStat(0)
	writeProc(t, dir, "", meminfo)
	collector := NewStatsCollector(dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for step := 1; ; step++ {
			select {
			case <-stop:
				return
			default:
				writeStat(step)
			}
		}
	}()

	// every advancing interval is half busy, whatever the interleaving
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				snap := collector.FetchMetrics(context.Background())
				if snap.CPUUsage != nil && math.Abs(*snap.CPUUsage-50) > 1e-9 {
					t.Errorf("expected cpu usage 50, got %f", *snap.CPUUsage)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-writerDone
}
