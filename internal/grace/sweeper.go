package grace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep once a minute.
const DefaultSchedule = "@every 1m"

// Sweeper runs ProcessExpiry on a cron schedule. Passes never overlap
// within one process.
type Sweeper struct {
	ledger   *Ledger
	schedule cron.Schedule
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper parses schedule (standard 5-field cron or a descriptor such
// as "@every 1m").
func NewSweeper(l *Ledger, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("grace: parse sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{ledger: l, schedule: sched, log: l.log, now: time.Now}, nil
}

// next returns the wait until the next scheduled pass.
func (s *Sweeper) next() time.Duration {
	now := s.now()
	d := s.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	timer := time.NewTimer(s.next())
	defer timer.Stop()

	s.log.Info("grace sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grace sweeper stopped")
			return
		case <-timer.C:
			s.Sweep(ctx)
			timer.Reset(s.next())
		}
	}
}

// Sweep runs one expiry pass and logs its outcome.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	res, err := s.ledger.ProcessExpiry(ctx)
	if err != nil {
		s.log.Error("grace sweep failed", slog.Any("error", err))
		return res
	}
	if res.Expired > 0 {
		s.log.Info("grace sweep",
			slog.Int("expired", res.Expired),
			slog.Int("reclaimed", res.Reclaimed),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", res.Failed))
	}
	return res
}
