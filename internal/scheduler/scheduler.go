// Package scheduler runs periodic housekeeping jobs.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Pruner drops expired entries and reports how many it removed.
type Pruner interface {
	PruneExpired() int
}

type Scheduler struct {
	s *gocron.Scheduler
}

// Start prunes p every interval, starting right away.
func Start(log *slog.Logger, p Pruner, interval time.Duration) (*Scheduler, error) {
	const op = "scheduler.Start"

	if interval <= 0 {
		return nil, fmt.Errorf("%s: interval must be positive, got %s", op, interval)
	}

	s := gocron.NewScheduler(time.UTC)

	_, err := s.Every(interval).Tag("prune revoked sessions").Do(func() {
		if n := p.PruneExpired(); n > 0 {
			log.Debug("pruned revoked sessions", slog.String("op", op), slog.Int("removed", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.StartAsync()

	return &Scheduler{s: s}, nil
}

func (s *Scheduler) Stop() {
	s.s.Stop()
}
