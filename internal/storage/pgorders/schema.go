package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  booking_id TEXT NOT NULL,
  order_id TEXT NOT NULL DEFAULT '',
  tenant_id BIGINT NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  status_raw TEXT NOT NULL DEFAULT '',
  cancel_reason TEXT NOT NULL DEFAULT '',
  reject_reason TEXT NOT NULL DEFAULT '',
  status_updated_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (booking_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_tenant_id_status ON orders(tenant_id, status)`,
		`
CREATE TABLE IF NOT EXISTS order_status_events (
  id BIGSERIAL PRIMARY KEY,
  booking_id TEXT NOT NULL,
  status TEXT NOT NULL,
  status_raw TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_status_events_booking_id_updated_at ON order_status_events(booking_id, updated_at DESC)`,
		// Enforce de-duplication of replayed status events.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_order_status_events_dedup ON order_status_events(booking_id, status_raw, updated_at)`,
		// Latest known position per booking, no track history.
		`
CREATE TABLE IF NOT EXISTS order_locations (
  booking_id TEXT PRIMARY KEY,
  tenant_id BIGINT NOT NULL DEFAULT 0,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
  sampled_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
