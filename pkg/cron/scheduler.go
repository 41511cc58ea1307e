// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DerivedResyncer repairs formula columns that drifted from their inputs
type DerivedResyncer interface {
	ResyncDerivedColumns(ctx context.Context) (int64, error)
}

// SessionEvicter drops expired pending-import sessions
type SessionEvicter interface {
	EvictExpired() int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	bookings DerivedResyncer
	sessions SessionEvicter
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(schedule string, bookings DerivedResyncer, sessions SessionEvicter, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	return &Scheduler{
		cron:     c,
		schedule: schedule,
		bookings: bookings,
		sessions: sessions,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweep()
}

// sweep repairs drifted formula columns and evicts stale import sessions.
// Derived values are recomputed on every write, so a non-zero repair count
// indicates writes that bypassed the API.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting consistency sweep")

	repaired, err := s.bookings.ResyncDerivedColumns(ctx)
	if err != nil {
		s.logger.Error("derived-column resync failed", slog.Any("error", err))
	} else if repaired > 0 {
		s.logger.Warn("repaired drifted derived columns", slog.Int64("rows", repaired))
	}

	if evicted := s.sessions.EvictExpired(); evicted > 0 {
		s.logger.Info("evicted expired import sessions", slog.Int("sessions", evicted))
	}

	s.logger.Info("consistency sweep finished")
}
