package service

import (
	"context"
	"testing"
	"time"

	"cross-border-escrow/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func TestDisputeSweeper_RunsUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	disputes := mocks.NewMockDisputeService(ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after the first sweep fires.
	disputes.EXPECT().SweepExpired(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
		cancel()
		return 2, nil
	})

	sweeper := NewDisputeSweeper(disputes, 10*time.Millisecond, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
