package tracker

import (
	"time"

	"github.com/BearBump/OrderPulse/internal/models"
)

// Step is one milestone of the order's progress view.
type Step struct {
	Status  string    `json:"status"`
	Reached bool      `json:"reached"`
	At      time.Time `json:"at,omitzero"`
}

var progressOrder = []string{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusCompleted,
}

// Steps derives the progress milestones from the status history. Only steps
// the order actually reached are marked, so a canceled or rejected order
// shows its partial progress instead of a fabricated full timeline. Statuses
// outside the canonical vocabulary count as pending.
func (t *Tracker) Steps() []Step {
	snap, ok := t.Snapshot()
	if !ok {
		return nil
	}

	reachedAt := make(map[string]time.Time, len(snap.StatusHistory))
	for _, h := range snap.StatusHistory {
		s := models.NormalizeStatus(h.Status)
		if !isProgressStep(s) {
			if models.IsTerminal(s) {
				continue // canceled/rejected are not milestones
			}
			s = models.StatusPending
		}
		if _, seen := reachedAt[s]; !seen {
			reachedAt[s] = h.ChangedAt
		}
	}

	steps := make([]Step, 0, len(progressOrder))
	for _, s := range progressOrder {
		at, reached := reachedAt[s]
		steps = append(steps, Step{Status: s, Reached: reached, At: at})
	}
	return steps
}

func isProgressStep(status string) bool {
	for _, s := range progressOrder {
		if s == status {
			return true
		}
	}
	return false
}
