package dashboard

import (
	"context"

	"github.com/BearBump/OrderPulse/internal/realtime/router"
)

// Run consumes the router's streams until the context is canceled. Status
// updates and new-order notifications feed the board; location and sharing
// events feed the map, when one is attached.
func (b *Board) Run(ctx context.Context, r *router.Router, m *LocationMap) error {
	status, cancelStatus := r.StatusUpdates().Subscribe(16)
	defer cancelStatus()
	newOrders, cancelNew := r.NewOrders().Subscribe(16)
	defer cancelNew()

	locations, cancelLoc := r.Locations().Subscribe(64)
	defer cancelLoc()
	started, cancelStarted := r.SharingStarted().Subscribe(16)
	defer cancelStarted()
	stopped, cancelStopped := r.SharingStopped().Subscribe(16)
	defer cancelStopped()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-status:
			b.ApplyStatusUpdate(ctx, upd)
			if m != nil {
				m.ApplyStatus(upd)
			}
		case n := <-newOrders:
			b.ApplyNewOrder(n)
		case s := <-locations:
			if m != nil {
				m.ApplySample(s)
			}
		case ev := <-started:
			b.logger.Info("location sharing started", "bookingId", ev.BookingID)
		case ev := <-stopped:
			if m != nil {
				m.Remove(ev.BookingID)
			}
		}
	}
}
