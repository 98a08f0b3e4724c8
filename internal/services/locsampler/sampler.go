// Package locsampler pushes the courier's position to the hub on a fixed
// cadence while an order is out for delivery. One sampler serves one booking.
package locsampler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/integrations/geosource"
)

// Hub invocations the sampler sends.
const (
	InvokeStartSharing = "StartLocationSharing"
	InvokeShare        = "ShareLocation"
	InvokeStopSharing  = "StopLocationSharing"
)

// ErrUnsupported: the agent has no geolocation source wired in.
var ErrUnsupported = errors.New("location sharing unsupported: no geolocation source")

const (
	defaultInterval = time.Minute
	// Первый фикс всегда свежий, дальше разрешаем кешированный до 30с.
	periodicMaxAge = 30 * time.Second
	fixTimeout     = 10 * time.Second
)

// Transport is the slice of the hub connection the sampler needs.
type Transport interface {
	Connected() bool
	Invoke(ctx context.Context, target string, args ...any) error
}

// Stats are the sampler's operational counters, exposed on /stats.
type Stats struct {
	Sent       uint64    `json:"sent"`
	Failures   uint64    `json:"failures"`
	Running    bool      `json:"running"`
	LastSentAt time.Time `json:"lastSentAt,omitzero"`
}

type Sampler struct {
	bookingID string
	geo       geosource.Client
	transport Transport
	interval  time.Duration
	logger    *slog.Logger

	mu            sync.Mutex
	cancel        context.CancelFunc
	starting      bool
	stopRequested bool
	lastSentAt    time.Time

	sent     atomic.Uint64
	failures atomic.Uint64
}

type Option func(*Sampler)

func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

func New(bookingID string, geo geosource.Client, transport Transport, opts ...Option) *Sampler {
	s := &Sampler{
		bookingID: bookingID,
		geo:       geo,
		transport: transport,
		interval:  defaultInterval,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start announces sharing to the hub, pushes one immediate fix and arms the
// periodic ticker. Idempotent. A failed first fix is reported to the caller
// but does NOT disarm the ticker: later ticks may still succeed.
func (s *Sampler) Start(ctx context.Context) error {
	if s.geo == nil {
		return ErrUnsupported
	}

	s.mu.Lock()
	if s.cancel != nil || s.starting {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.mu.Unlock()

	// Анонс идёт без мьютекса: Stop не должен ждать round-trip к хабу.
	err := s.transport.Invoke(ctx, InvokeStartSharing, s.bookingID)

	s.mu.Lock()
	s.starting = false
	stopRequested := s.stopRequested
	s.stopRequested = false
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "announce sharing")
	}
	if stopRequested {
		s.mu.Unlock()
		if s.transport.Connected() {
			_ = s.transport.Invoke(ctx, InvokeStopSharing, s.bookingID)
		}
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	firstErr := s.sampleOnce(ctx, 0)
	go s.loop(loopCtx)
	return firstErr
}

func (s *Sampler) loop(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.sampleOnce(ctx, periodicMaxAge); err != nil {
				s.logger.Warn("location sample skipped", "bookingId", s.bookingID, "error", err.Error())
			}
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context, maxAge time.Duration) error {
	fix, err := s.geo.CurrentPosition(ctx, geosource.Options{
		HighAccuracy: true,
		Timeout:      fixTimeout,
		MaxAge:       maxAge,
	})
	if err != nil {
		s.failures.Add(1)
		return errors.Wrap(err, "current position")
	}

	if err := s.transport.Invoke(ctx, InvokeShare, s.bookingID, fix.Latitude, fix.Longitude, fix.Accuracy); err != nil {
		s.failures.Add(1)
		return errors.Wrap(err, "share location")
	}
	s.sent.Add(1)
	s.mu.Lock()
	s.lastSentAt = fix.Timestamp
	s.mu.Unlock()
	return nil
}

// Stop disarms the ticker and, if the hub is reachable, tells it sharing
// ended. Idempotent; safe to call before Start.
func (s *Sampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.starting {
		// Старт ещё анонсируется; он сам откатит шаринг, когда договорит.
		s.stopRequested = true
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if !s.transport.Connected() {
		// Оффлайн: сервер сам закроет шаринг по таймауту.
		return nil
	}
	return s.transport.Invoke(ctx, InvokeStopSharing, s.bookingID)
}

// Stats returns a copy of the operational counters.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	running := s.cancel != nil
	lastSentAt := s.lastSentAt
	s.mu.Unlock()
	return Stats{
		Sent:       s.sent.Load(),
		Failures:   s.failures.Load(),
		Running:    running,
		LastSentAt: lastSentAt,
	}
}
