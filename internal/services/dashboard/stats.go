package dashboard

import "github.com/BearBump/OrderPulse/internal/models"

// Stats are the per-status aggregates shown on the restaurant dashboard.
// They are pulled in full and then patched incrementally from pushed status
// updates via the transition table below.
type Stats struct {
	Pending   int `json:"pendingBookings"`
	Preparing int `json:"preparingBookings"`
	Ready     int `json:"readyToDeliverBookings"`
	Completed int `json:"completedBookings"`
	Canceled  int `json:"canceledBookings"`
}

// applyTransition patches the counters for one status change. The table is
// keyed only by the new status (the update does not carry the previous one),
// and counters clamp at zero to absorb duplicate or out-of-order events.
//
// NOTE: "canceled" decrements both pending and preparing, "rejected" only
// pending. The backend aggregates count the same way, and the patched
// counters must agree with the next full pull, so the asymmetry stays.
// Statuses outside the table (including unknown ones) leave the counters
// untouched.
func (s *Stats) applyTransition(status string) {
	switch models.NormalizeStatus(status) {
	case models.StatusConfirmed:
		s.Pending = dec(s.Pending)
	case models.StatusPreparing:
		s.Preparing++
	case models.StatusReady:
		s.Preparing = dec(s.Preparing)
		s.Ready++
	case models.StatusCompleted:
		s.Ready = dec(s.Ready)
		s.Completed++
	case models.StatusCanceled:
		s.Canceled++
		s.Pending = dec(s.Pending)
		s.Preparing = dec(s.Preparing)
	case models.StatusRejected:
		s.Canceled++
		s.Pending = dec(s.Pending)
	}
}

func dec(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
