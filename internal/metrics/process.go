// Package metrics provides Prometheus metrics for launched processes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclaunch",
		Subsystem: "process",
		Name:      "starts_total",
		Help:      "Child processes spawned",
	}, []string{"path"})

	processRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "proclaunch",
		Subsystem: "process",
		Name:      "running",
		Help:      "Child processes currently running",
	}, []string{"path"})

	processExitCode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "proclaunch",
		Subsystem: "process",
		Name:      "last_exit_code",
		Help:      "Exit code of the most recent run",
	}, []string{"path"})

	processFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclaunch",
		Subsystem: "process",
		Name:      "finalized_total",
		Help:      "Runs checked against the exit policy, by outcome",
	}, []string{"path", "outcome"})

	processDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proclaunch",
		Subsystem: "process",
		Name:      "run_duration_seconds",
		Help:      "Wall time from spawn to exit",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"path"})

	outputLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclaunch",
		Subsystem: "output",
		Name:      "lines_total",
		Help:      "Lines read from redirected streams",
	}, []string{"stream"})

	// Local cache for the CLI summary.
	runCache   = make(map[string]*RunSummary)
	runCacheMu sync.RWMutex
)

// RunSummary holds the latest values recorded for a path.
type RunSummary struct {
	Starts   int
	ExitCode int
	Duration time.Duration
	Valid    bool
}

// RecordStart counts a spawn of path.
func RecordStart(path string) {
	processStarts.WithLabelValues(path).Inc()
	processRunning.WithLabelValues(path).Inc()
	updateCache(path, func(s *RunSummary) { s.Starts++ })
}

// RecordExit records the exit code and run time of path.
func RecordExit(path string, code int, duration time.Duration) {
	processRunning.WithLabelValues(path).Dec()
	processExitCode.WithLabelValues(path).Set(float64(code))
	processDuration.WithLabelValues(path).Observe(duration.Seconds())
	updateCache(path, func(s *RunSummary) {
		s.ExitCode = code
		s.Duration = duration
	})
}

// RecordFinalized counts an exit policy verdict.
func RecordFinalized(path, outcome string) {
	processFinalized.WithLabelValues(path, outcome).Inc()
	updateCache(path, func(s *RunSummary) { s.Valid = outcome == "valid" })
}

// RecordLine counts one output line.
func RecordLine(stream string) {
	outputLines.WithLabelValues(stream).Inc()
}

// DeleteProcessMetrics removes all per-path metrics.
func DeleteProcessMetrics(path string) {
	processStarts.DeleteLabelValues(path)
	processRunning.DeleteLabelValues(path)
	processExitCode.DeleteLabelValues(path)
	processDuration.DeleteLabelValues(path)
	processFinalized.DeleteLabelValues(path, "valid")
	processFinalized.DeleteLabelValues(path, "invalid")

	runCacheMu.Lock()
	delete(runCache, path)
	runCacheMu.Unlock()
}

// GetRunSummary returns the latest values for path, or nil.
func GetRunSummary(path string) *RunSummary {
	runCacheMu.RLock()
	defer runCacheMu.RUnlock()
	if s, ok := runCache[path]; ok {
		dup := *s
		return &dup
	}
	return nil
}

func updateCache(path string, update func(*RunSummary)) {
	runCacheMu.Lock()
	defer runCacheMu.Unlock()
	s, ok := runCache[path]
	if !ok {
		s = &RunSummary{}
		runCache[path] = s
	}
	update(s)
}
