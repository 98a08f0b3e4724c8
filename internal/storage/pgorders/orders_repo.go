package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/broker/messages"
)

// OrderMirror is one mirrored order row.
type OrderMirror struct {
	ID              uint64
	BookingID       string
	OrderID         string
	TenantID        int64
	Status          string
	StatusRaw       string
	CancelReason    string
	RejectReason    string
	StatusUpdatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LocationMirror is the latest known position for a booking.
type LocationMirror struct {
	BookingID string
	TenantID  int64
	Latitude  float64
	Longitude float64
	Accuracy  float64
	SampledAt time.Time
}

var ErrNotFound = errors.New("order not mirrored")

// ApplyStatusChanged upserts the order row and records the status event.
// Replayed events de-duplicate on (booking_id, status_raw, updated_at), so
// the handler is safe to run at-least-once.
func (s *Storage) ApplyStatusChanged(ctx context.Context, m messages.OrderStatusChanged) error {
	if m.BookingID == "" {
		return errors.New("booking_id is required")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updatedAt := m.UpdatedAt.UTC()
	_, err = tx.Exec(ctx, `
INSERT INTO orders (
  booking_id, order_id, tenant_id, status, status_raw,
  cancel_reason, reject_reason, status_updated_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now(), now())
ON CONFLICT (booking_id)
DO UPDATE SET
  order_id = CASE WHEN EXCLUDED.order_id <> '' THEN EXCLUDED.order_id ELSE orders.order_id END,
  tenant_id = CASE WHEN EXCLUDED.tenant_id <> 0 THEN EXCLUDED.tenant_id ELSE orders.tenant_id END,
  status = EXCLUDED.status,
  status_raw = EXCLUDED.status_raw,
  cancel_reason = CASE WHEN EXCLUDED.cancel_reason <> '' THEN EXCLUDED.cancel_reason ELSE orders.cancel_reason END,
  reject_reason = CASE WHEN EXCLUDED.reject_reason <> '' THEN EXCLUDED.reject_reason ELSE orders.reject_reason END,
  status_updated_at = EXCLUDED.status_updated_at,
  updated_at = now()
`, m.BookingID, m.OrderID, m.TenantID, m.Status, m.StatusRaw,
		m.CancelReason, m.RejectReason, updatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert order")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO order_status_events (
  booking_id, status, status_raw, message, updated_at, created_at
)
VALUES ($1,$2,$3,$4,$5, now())
ON CONFLICT (booking_id, status_raw, updated_at) DO NOTHING
`, m.BookingID, m.Status, m.StatusRaw, m.Message, updatedAt)
	if err != nil {
		return errors.Wrap(err, "insert status event")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// ApplyLocationUpdated upserts the booking's latest position. An older
// sample never overwrites a newer one (the bus does not guarantee order
// across partitions).
func (s *Storage) ApplyLocationUpdated(ctx context.Context, m messages.UserLocationUpdated) error {
	if m.BookingID == "" {
		return errors.New("booking_id is required")
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO order_locations (
  booking_id, tenant_id, latitude, longitude, accuracy, sampled_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6, now())
ON CONFLICT (booking_id)
DO UPDATE SET
  tenant_id = EXCLUDED.tenant_id,
  latitude = EXCLUDED.latitude,
  longitude = EXCLUDED.longitude,
  accuracy = EXCLUDED.accuracy,
  sampled_at = EXCLUDED.sampled_at,
  updated_at = now()
WHERE EXCLUDED.sampled_at >= order_locations.sampled_at
`, m.BookingID, m.TenantID, m.Latitude, m.Longitude, m.Accuracy, m.Timestamp.UTC())
	return errors.Wrap(err, "upsert location")
}

// GetOrder returns the mirrored row for one booking.
func (s *Storage) GetOrder(ctx context.Context, bookingID string) (*OrderMirror, error) {
	var o OrderMirror
	err := s.db.QueryRow(ctx, `
SELECT
  id, booking_id, order_id, tenant_id,
  status, status_raw, cancel_reason, reject_reason,
  status_updated_at, created_at, updated_at
FROM orders
WHERE booking_id = $1
`, bookingID).Scan(
		&o.ID, &o.BookingID, &o.OrderID, &o.TenantID,
		&o.Status, &o.StatusRaw, &o.CancelReason, &o.RejectReason,
		&o.StatusUpdatedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return &o, nil
}

// GetLocation returns the booking's latest mirrored position.
func (s *Storage) GetLocation(ctx context.Context, bookingID string) (*LocationMirror, error) {
	var l LocationMirror
	err := s.db.QueryRow(ctx, `
SELECT booking_id, tenant_id, latitude, longitude, accuracy, sampled_at
FROM order_locations
WHERE booking_id = $1
`, bookingID).Scan(&l.BookingID, &l.TenantID, &l.Latitude, &l.Longitude, &l.Accuracy, &l.SampledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select location")
	}
	return &l, nil
}
