package concurrent

import (
	"context"
	"sync"
	"time"

	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
)

// Job is one execution of a periodic task.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a fixed interval from a single goroutine, so runs of the
// same job never overlap. Start and Stop are idempotent.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   logger.Logger

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mutex   sync.Mutex

	statsCollector *StatsCollector
}

func NewScheduler(name string, interval time.Duration, job Job, logger logger.Logger) *Scheduler {
	return &Scheduler{
		name:           name,
		interval:       interval,
		job:            job,
		logger:         logger.WithFields(map[string]interface{}{"job": name}),
		statsCollector: NewStatsCollector(),
	}
}

// Start begins ticking. The first run happens one interval after Start; callers that
// need an immediate run call RunOnce themselves. A non-positive interval disables
// the scheduler.
func (s *Scheduler) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started {
		return
	}
	if s.interval <= 0 {
		s.logger.Info("Scheduler disabled", map[string]interface{}{})
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	s.logger.Info("Scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(s.ctx)
	}()
}

func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if !s.started {
		s.mutex.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mutex.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped", map[string]interface{}{})
}

func (s *Scheduler) Running() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes the job synchronously and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	s.statsCollector.IncrementRuns()

	err := s.job(ctx)

	duration := time.Since(startTime)
	s.statsCollector.RecordRun(startTime, duration, err)
	metrics.RecordSchedulerRun(s.name, err)

	if err != nil {
		s.logger.Error("Scheduled job failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": duration.String(),
		})
		return err
	}

	s.logger.Debug("Scheduled job completed", map[string]interface{}{
		"duration": duration.String(),
	})
	return nil
}

func (s *Scheduler) GetStats() Stats {
	return s.statsCollector.GetStats()
}
