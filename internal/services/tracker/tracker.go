// Package tracker maintains the customer-side view of one booking: the
// pulled tracking snapshot kept current by pushed status updates. Once the
// order reaches a terminal status the tracker shuts down location sharing,
// exactly once.
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/OrderPulse/internal/cache"
	"github.com/BearBump/OrderPulse/internal/models"
)

// Puller is the slice of the order API the tracker needs.
type Puller interface {
	GetTrackingSnapshot(ctx context.Context, bookingID string) (*models.TrackingSnapshot, error)
}

// Stopper ends location sharing for the tracked booking.
type Stopper interface {
	Stop(ctx context.Context) error
}

const defaultCacheTTL = 5 * time.Minute

type Tracker struct {
	bookingID string
	puller    Puller
	cache     cache.BytesCache
	stopper   Stopper
	cacheTTL  time.Duration
	logger    *slog.Logger

	mu      sync.RWMutex
	snap    *models.TrackingSnapshot
	stopped bool
}

type Option func(*Tracker)

func WithCache(c cache.BytesCache) Option {
	return func(t *Tracker) { t.cache = c }
}

func WithStopper(s Stopper) Option {
	return func(t *Tracker) { t.stopper = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.cacheTTL = ttl
		}
	}
}

func New(bookingID string, puller Puller, opts ...Option) *Tracker {
	t := &Tracker{
		bookingID: bookingID,
		puller:    puller,
		cacheTTL:  defaultCacheTTL,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) cacheKey() string {
	return "ordertrack:" + t.bookingID + ":snapshot"
}

// Load brings in the snapshot, preferring the cache over a pull. The cached
// copy is only a restart bridge; pushed updates keep it current afterwards.
func (t *Tracker) Load(ctx context.Context) error {
	if t.cache != nil {
		if b, ok, err := t.cache.Get(ctx, t.cacheKey()); err != nil {
			t.logger.Error("snapshot cache get", "error", err.Error())
		} else if ok {
			var snap models.TrackingSnapshot
			if err := json.Unmarshal(b, &snap); err == nil {
				t.setSnapshot(&snap)
				return nil
			}
			t.logger.Warn("snapshot cache corrupt, re-pulling", "bookingId", t.bookingID)
		}
	}
	return t.pull(ctx)
}

func (t *Tracker) pull(ctx context.Context) error {
	snap, err := t.puller.GetTrackingSnapshot(ctx, t.bookingID)
	if err != nil {
		return err
	}
	t.setSnapshot(snap)
	t.persist(ctx, snap)
	return nil
}

func (t *Tracker) setSnapshot(snap *models.TrackingSnapshot) {
	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
}

func (t *Tracker) persist(ctx context.Context, snap *models.TrackingSnapshot) {
	if t.cache == nil {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := t.cache.Set(ctx, t.cacheKey(), b, t.cacheTTL); err != nil {
		t.logger.Error("snapshot cache set", "error", err.Error())
	}
}

// Apply merges a pushed update into the snapshot: current status, a history
// entry, and cancel/reject reasons when carried. An update arriving before
// any snapshot exists means the tracker missed the pull; that falls back to
// a full re-pull. Updates for other bookings are ignored.
func (t *Tracker) Apply(ctx context.Context, upd models.StatusUpdate) error {
	if upd.BookingID != t.bookingID {
		return nil
	}

	t.mu.Lock()
	if t.snap == nil {
		t.mu.Unlock()
		if err := t.pull(ctx); err != nil {
			return err
		}
	} else {
		t.merge(upd)
		snap := t.snap
		t.mu.Unlock()
		t.persist(ctx, snap)
	}

	if models.IsTerminal(upd.Status) {
		t.stopSharing(ctx)
	}
	return nil
}

// merge mutates t.snap; caller holds t.mu.
func (t *Tracker) merge(upd models.StatusUpdate) {
	t.snap.CurrentStatus = upd.Status

	n := len(t.snap.StatusHistory)
	if n == 0 || t.snap.StatusHistory[n-1].Status != upd.Status {
		t.snap.StatusHistory = append(t.snap.StatusHistory, models.StatusHistory{
			Status:    upd.Status,
			Message:   upd.StatusMessage,
			ChangedAt: upd.UpdatedAt,
		})
	}

	if upd.Details != nil {
		if upd.Details.CancelReason != "" {
			t.snap.CancelReason = upd.Details.CancelReason
		}
		if upd.Details.RejectReason != "" {
			t.snap.RejectReason = upd.Details.RejectReason
		}
	}
}

func (t *Tracker) stopSharing(ctx context.Context) {
	t.mu.Lock()
	if t.stopped || t.stopper == nil {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	if err := t.stopper.Stop(ctx); err != nil {
		t.logger.Error("stop location sharing", "bookingId", t.bookingID, "error", err.Error())
	}
}

// Snapshot returns a copy of the current tracking state.
func (t *Tracker) Snapshot() (models.TrackingSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snap == nil {
		return models.TrackingSnapshot{}, false
	}
	cp := *t.snap
	cp.StatusHistory = append([]models.StatusHistory(nil), t.snap.StatusHistory...)
	return cp, true
}
