// Package bridge mirrors the hub's pushed updates onto the message bus so
// the rest of the platform (analytics, the ops mirror) sees the same stream
// the dashboards do.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/BearBump/OrderPulse/internal/broker/messages"
	"github.com/BearBump/OrderPulse/internal/models"
	"github.com/BearBump/OrderPulse/internal/realtime/router"
)

const (
	TopicStatusUpdated   = "orders.status.updated"
	TopicLocationUpdated = "orders.location.updated"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Stats are the bridge's operational counters, exposed on /stats.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

type Bridge struct {
	pub      Publisher
	tenantID int64
	logger   *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

type Option func(*Bridge)

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

func New(pub Publisher, tenantID int64, opts ...Option) *Bridge {
	b := &Bridge{
		pub:      pub,
		tenantID: tenantID,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run mirrors status updates and location samples until the context is
// canceled. Publish failures are counted and logged, never fatal: the bus is
// a mirror, not the source of truth.
func (b *Bridge) Run(ctx context.Context, r *router.Router) error {
	status, cancelStatus := r.StatusUpdates().Subscribe(64)
	defer cancelStatus()
	locations, cancelLoc := r.Locations().Subscribe(64)
	defer cancelLoc()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-status:
			b.publish(ctx, TopicStatusUpdated, upd.BookingID, statusMessage(upd, b.tenantID))
		case s := <-locations:
			b.publish(ctx, TopicLocationUpdated, s.BookingID, locationMessage(s))
		}
	}
}

func (b *Bridge) publish(ctx context.Context, topic, key string, msg any) {
	value, err := json.Marshal(msg)
	if err != nil {
		b.failed.Add(1)
		return
	}
	if err := b.pub.Publish(ctx, topic, []byte(key), value); err != nil {
		b.failed.Add(1)
		b.logger.Error("bridge publish", "topic", topic, "key", key, "error", err.Error())
		return
	}
	b.published.Add(1)
}

func statusMessage(upd models.StatusUpdate, tenantID int64) messages.OrderStatusChanged {
	m := messages.OrderStatusChanged{
		BookingID: upd.BookingID,
		OrderID:   upd.OrderID,
		TenantID:  tenantID,
		Status:    upd.Status,
		StatusRaw: upd.StatusRaw,
		Message:   upd.StatusMessage,
		UpdatedAt: upd.UpdatedAt,
	}
	if upd.Details != nil {
		m.CancelReason = upd.Details.CancelReason
		m.RejectReason = upd.Details.RejectReason
	}
	return m
}

func locationMessage(s models.LocationSample) messages.UserLocationUpdated {
	return messages.UserLocationUpdated{
		BookingID: s.BookingID,
		TenantID:  s.TenantID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Accuracy:  s.Accuracy,
		Timestamp: s.Timestamp,
	}
}

// Stats returns a copy of the operational counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Failed:    b.failed.Load(),
	}
}
