package service

import (
	"context"
	"time"

	"cross-border-escrow/internal/core/ports"

	"github.com/rs/zerolog"
)

// DisputeSweeper periodically finalizes disputes whose voting deadline has
// passed. It is the safety net for disputes that never reach quorum.
type DisputeSweeper struct {
	disputes ports.DisputeService
	interval time.Duration
	log      zerolog.Logger
}

// NewDisputeSweeper creates a new DisputeSweeper.
func NewDisputeSweeper(disputes ports.DisputeService, interval time.Duration, log zerolog.Logger) *DisputeSweeper {
	return &DisputeSweeper{
		disputes: disputes,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (w *DisputeSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("dispute sweeper started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("dispute sweeper stopped")
			return
		case <-ticker.C:
			n, err := w.disputes.SweepExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("dispute sweep failed")
				continue
			}
			if n > 0 {
				w.log.Info().Int("resolved", n).Msg("dispute sweep finalized expired disputes")
			}
		}
	}
}
