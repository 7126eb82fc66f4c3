package quorum

import (
	"context"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
)

// Sweeper periodically expires overdue pending requests.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *logging.Logger
}

// NewSweeper creates a background expiry sweeper. A non-positive interval
// falls back to one minute.
func NewSweeper(engine *Engine, interval time.Duration, logger *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run blocks, sweeping on each tick until ctx is cancelled. The sweep is
// eventual cleanup only; vote admission performs the same expiry check
// lazily, so a missed tick never affects correctness.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.engine.ExpireOverdue(ctx)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("Expiry sweep failed", err, nil)
				}
				continue
			}
			if n > 0 && s.logger != nil {
				s.logger.Info("Expired overdue approval requests", map[string]interface{}{
					"count": n,
				})
			}
		}
	}
}
