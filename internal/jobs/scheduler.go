// Package jobs runs the periodic housekeeping of the service.
package jobs

import (
	"fmt"
	"time"

	rcron "github.com/robfig/cron/v3"

	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
)

// Sweeper forgets state not touched for idle and returns how much it dropped.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Scheduler wraps a cron runner with the service logger.
type Scheduler struct {
	cron   *rcron.Cron
	logger logging.Logger
}

func NewScheduler(logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	adapter := cronLogger{logger}
	return &Scheduler{
		cron: rcron.New(
			rcron.WithLogger(adapter),
			rcron.WithChain(rcron.Recover(adapter), rcron.SkipIfStillRunning(adapter)),
		),
		logger: logger,
	}
}

// ScheduleEviction drops idle autosave pipelines from registry, and idle rate-limit
// buckets from sweepers, on the given cron spec (e.g. "@every 5m").
func (s *Scheduler) ScheduleEviction(spec string, registry *wizard.Registry, idle time.Duration, sweepers ...Sweeper) error {
	_, err := s.cron.AddFunc(spec, func() {
		EvictIdle(registry, idle, s.logger, sweepers...)
	})
	if err != nil {
		return fmt.Errorf("schedule eviction %q: %w", spec, err)
	}
	return nil
}

// EvictIdle runs one eviction pass.
func EvictIdle(registry *wizard.Registry, idle time.Duration, logger logging.Logger, sweepers ...Sweeper) int {
	n := registry.EvictIdle(idle)
	for _, sw := range sweepers {
		n += sw.Sweep(idle)
	}
	if n > 0 {
		logger.Debug("evicted %d idle entries", n)
	}
	return n
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

type cronLogger struct {
	logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
