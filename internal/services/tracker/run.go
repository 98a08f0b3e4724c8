package tracker

import (
	"context"

	"github.com/BearBump/OrderPulse/internal/realtime/router"
)

// Run consumes pushed status updates until the context is canceled.
func (t *Tracker) Run(ctx context.Context, r *router.Router) error {
	updates, cancel := r.StatusUpdates().Subscribe(16)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if err := t.Apply(ctx, upd); err != nil {
				t.logger.Error("apply status update", "bookingId", upd.BookingID, "error", err.Error())
			}
		}
	}
}
