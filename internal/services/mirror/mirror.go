// Package mirror consumes the agent's bus topics and writes them into the
// Postgres mirror. It is the read side of the bridge: at-least-once input,
// de-duplicated by the storage layer.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/broker/messages"
	"github.com/BearBump/OrderPulse/internal/services/bridge"
)

type Sink interface {
	ApplyStatusChanged(ctx context.Context, m messages.OrderStatusChanged) error
	ApplyLocationUpdated(ctx context.Context, m messages.UserLocationUpdated) error
}

type Consumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
}

// Stats are the mirror's operational counters, exposed on /stats.
type Stats struct {
	Applied uint64 `json:"applied"`
	Skipped uint64 `json:"skipped"`
}

type Mirror struct {
	sink   Sink
	logger *slog.Logger

	applied atomic.Uint64
	skipped atomic.Uint64
}

type Option func(*Mirror)

func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

func New(sink Sink, opts ...Option) *Mirror {
	m := &Mirror{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run consumes until the consumer or the sink fails. A malformed message is
// skipped (committed) rather than poisoning the partition; a sink failure
// stops consumption so the message is redelivered.
func (m *Mirror) Run(ctx context.Context, c Consumer) error {
	return c.Consume(ctx, m.Handle)
}

func (m *Mirror) Handle(topic string, key, value []byte) error {
	ctx := context.Background()

	switch topic {
	case bridge.TopicStatusUpdated:
		var msg messages.OrderStatusChanged
		if err := json.Unmarshal(value, &msg); err != nil {
			m.skip(topic, key, err)
			return nil
		}
		if err := m.sink.ApplyStatusChanged(ctx, msg); err != nil {
			return errors.Wrap(err, "apply status changed")
		}
	case bridge.TopicLocationUpdated:
		var msg messages.UserLocationUpdated
		if err := json.Unmarshal(value, &msg); err != nil {
			m.skip(topic, key, err)
			return nil
		}
		if err := m.sink.ApplyLocationUpdated(ctx, msg); err != nil {
			return errors.Wrap(err, "apply location updated")
		}
	default:
		m.skip(topic, key, errors.New("unexpected topic"))
		return nil
	}

	m.applied.Add(1)
	return nil
}

func (m *Mirror) skip(topic string, key []byte, err error) {
	m.skipped.Add(1)
	m.logger.Warn("mirror message skipped", "topic", topic, "key", string(key), "error", err.Error())
}

// Stats returns a copy of the operational counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Applied: m.applied.Load(),
		Skipped: m.skipped.Load(),
	}
}
