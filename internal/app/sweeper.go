package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner purges expired mappings.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Sweeper runs Cleanup on a fixed interval.
type Sweeper struct {
	c        Cleaner
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(c Cleaner, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{c: c, interval: interval, log: log}
}

// Run blocks until ctx is done. A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("cleanup sweeper started")
	for {
		select {
		case <-ticker.C:
			if _, err := s.c.Cleanup(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("scheduled cleanup failed")
			}
		case <-ctx.Done():
			s.log.Info().Msg("cleanup sweeper stopped")
			return
		}
	}
}
