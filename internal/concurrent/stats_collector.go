package concurrent

import (
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	Runs        int64         `json:"runs"`
	Succeeded   int64         `json:"succeeded"`
	Failed      int64         `json:"failed"`
	AvgDuration time.Duration `json:"avg_duration"`
	LastRunAt   time.Time     `json:"last_run_at,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}

type StatsCollector struct {
	runs      int64
	succeeded int64
	failed    int64

	mutex        sync.RWMutex
	totalRunTime int64
	finished     int64
	lastRunAt    time.Time
	lastError    string
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

func (sc *StatsCollector) IncrementRuns() {
	atomic.AddInt64(&sc.runs, 1)
}

func (sc *StatsCollector) RecordRun(at time.Time, d time.Duration, err error) {
	if err != nil {
		atomic.AddInt64(&sc.failed, 1)
	} else {
		atomic.AddInt64(&sc.succeeded, 1)
	}

	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.totalRunTime += d.Nanoseconds()
	sc.finished++
	sc.lastRunAt = at
	if err != nil {
		sc.lastError = err.Error()
	} else {
		sc.lastError = ""
	}
}

func (sc *StatsCollector) GetStats() Stats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	stats := Stats{
		Runs:      atomic.LoadInt64(&sc.runs),
		Succeeded: atomic.LoadInt64(&sc.succeeded),
		Failed:    atomic.LoadInt64(&sc.failed),
		LastRunAt: sc.lastRunAt,
		LastError: sc.lastError,
	}

	if sc.finished > 0 {
		stats.AvgDuration = time.Duration(sc.totalRunTime / sc.finished)
	}

	return stats
}
