package pgorders

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// StatusEvent is one mirrored status transition.
type StatusEvent struct {
	ID        uint64
	BookingID string
	Status    string
	StatusRaw string
	Message   string
	UpdatedAt time.Time
	CreatedAt time.Time
}

// ListStatusEvents returns a booking's status history, newest first.
func (s *Storage) ListStatusEvents(ctx context.Context, bookingID string, limit, offset int) ([]*StatusEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, booking_id, status, status_raw, message, updated_at, created_at
FROM order_status_events
WHERE booking_id = $1
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3
`, bookingID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select status events")
	}
	defer rows.Close()

	var out []*StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(
			&e.ID, &e.BookingID, &e.Status, &e.StatusRaw, &e.Message, &e.UpdatedAt, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan status event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
