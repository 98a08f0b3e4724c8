// Package dashboard maintains the restaurant-side view state: per-status
// counters and the visible order list. Full state comes from the pull API;
// pushed updates are merged in-place, and a pushed update for an order the
// list does not know triggers at most one rate-limited re-pull.
package dashboard

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/BearBump/OrderPulse/internal/api/orderapi"
	"github.com/BearBump/OrderPulse/internal/models"
)

// Puller is the slice of the order API the board needs.
type Puller interface {
	GetDashboardStats(ctx context.Context, tenantID int64) (orderapi.DashboardStats, error)
	GetOrders(ctx context.Context, f orderapi.OrdersFilter) (orderapi.OrdersPage, error)
}

// RateLimiter guards the miss-triggered re-pull so a burst of updates for
// unknown bookings cannot hammer the backend.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

const (
	defaultRepullLimit = 1
	repullWindow       = 30 * time.Second
)

// OrderRow is one line of the dashboard's order list. Merging a status update
// touches only Status, Time and the transient UI flags; every other field
// keeps its pulled value.
type OrderRow struct {
	BookingID     string  `json:"bookingId"`
	OrderID       string  `json:"orderId"`
	PassengerName string  `json:"passengerName"`
	BusNumber     string  `json:"busNumber"`
	Status        string  `json:"status"`
	Time          string  `json:"time"`
	Amount        float64 `json:"amount"`
	IsUpdating    bool    `json:"isUpdating"`
	ShowDropdown  bool    `json:"showDropdown"`
}

// Counters are the board's operational counters, exposed on /stats.
type Counters struct {
	UpdatesApplied    uint64 `json:"updatesApplied"`
	RowsMerged        uint64 `json:"rowsMerged"`
	NewOrders         uint64 `json:"newOrders"`
	Repulls           uint64 `json:"repulls"`
	RepullsSuppressed uint64 `json:"repullsSuppressed"`
}

type Board struct {
	tenantID    int64
	puller      Puller
	limiter     RateLimiter
	logger      *slog.Logger
	pageSize    int
	repullLimit int64

	mu       sync.RWMutex
	stats    Stats
	orders   []OrderRow
	counters Counters
}

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.logger = l }
}

func WithRateLimiter(rl RateLimiter) Option {
	return func(b *Board) { b.limiter = rl }
}

func WithPageSize(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithRepullLimit raises how many miss-triggered re-pulls the limiter admits
// per window.
func WithRepullLimit(n int64) Option {
	return func(b *Board) {
		if n > 0 {
			b.repullLimit = n
		}
	}
}

func New(tenantID int64, puller Puller, opts ...Option) *Board {
	b := &Board{
		tenantID:    tenantID,
		puller:      puller,
		logger:      slog.Default(),
		pageSize:    10,
		repullLimit: defaultRepullLimit,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Refresh pulls the full dashboard state, replacing counters and order list.
func (b *Board) Refresh(ctx context.Context) error {
	stats, err := b.puller.GetDashboardStats(ctx, b.tenantID)
	if err != nil {
		return err
	}
	page, err := b.puller.GetOrders(ctx, orderapi.OrdersFilter{
		TenantID: b.tenantID,
		PageSize: b.pageSize,
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.stats = Stats{
		Pending:   stats.PendingBookings,
		Preparing: stats.PreparingBookings,
		Ready:     stats.ReadyToDeliverBookings,
		Completed: stats.CompletedBookings,
		Canceled:  stats.CanceledBookings,
	}
	b.orders = b.orders[:0]
	for _, o := range page.Items {
		b.orders = append(b.orders, rowFromSummary(o))
	}
	b.mu.Unlock()
	return nil
}

func rowFromSummary(o orderapi.OrderSummary) OrderRow {
	return OrderRow{
		BookingID:     o.BookingID,
		OrderID:       o.OrderID,
		PassengerName: o.PassengerName,
		BusNumber:     o.BusNumber,
		Status:        models.NormalizeStatus(o.Status),
		Time:          formatTime(o.CreatedAt),
		Amount:        o.TotalAmount,
	}
}

// ApplyStatusUpdate patches the counters and merges the update into the order
// list. An update for a booking that is not in the list means the list is
// stale; that triggers a single re-pull of the orders page, rate-limited per
// tenant.
func (b *Board) ApplyStatusUpdate(ctx context.Context, upd models.StatusUpdate) {
	b.mu.Lock()
	b.stats.applyTransition(upd.Status)
	b.counters.UpdatesApplied++

	merged := false
	for i := range b.orders {
		if b.orders[i].BookingID != upd.BookingID {
			continue
		}
		b.orders[i].Status = upd.Status
		if !upd.UpdatedAt.IsZero() {
			b.orders[i].Time = formatTime(upd.UpdatedAt)
		}
		b.orders[i].IsUpdating = false
		b.orders[i].ShowDropdown = false
		b.counters.RowsMerged++
		merged = true
		break
	}
	b.mu.Unlock()

	if merged {
		return
	}
	b.repullOrders(ctx, upd.BookingID)
}

func (b *Board) repullOrders(ctx context.Context, bookingID string) {
	if b.limiter != nil {
		key := "rl:refresh:tenant:" + strconv.FormatInt(b.tenantID, 10)
		allowed, _, err := b.limiter.Allow(ctx, key, b.repullLimit, repullWindow)
		if err != nil {
			// Fail open: a broken limiter must not freeze the list.
			b.logger.Error("repull limiter", "error", err.Error())
		} else if !allowed {
			b.mu.Lock()
			b.counters.RepullsSuppressed++
			b.mu.Unlock()
			b.logger.Warn("repull suppressed", "bookingId", bookingID)
			return
		}
	}

	b.logger.Info("order not in list, re-pulling", "bookingId", bookingID)
	page, err := b.puller.GetOrders(ctx, orderapi.OrdersFilter{
		TenantID: b.tenantID,
		PageSize: b.pageSize,
	})
	if err != nil {
		b.logger.Error("re-pull orders", "error", err.Error())
		return
	}

	b.mu.Lock()
	b.counters.Repulls++
	b.orders = b.orders[:0]
	for _, o := range page.Items {
		b.orders = append(b.orders, rowFromSummary(o))
	}
	b.mu.Unlock()
}

// ApplyNewOrder prepends a freshly confirmed order to the list.
func (b *Board) ApplyNewOrder(n models.NewOrderNotification) {
	row := OrderRow{
		BookingID:     n.BookingID,
		OrderID:       n.OrderID,
		PassengerName: n.PassengerName,
		BusNumber:     n.BusNumber,
		Status:        models.StatusPending,
		Time:          formatTime(n.OrderConfirmedAt),
		Amount:        n.TotalAmount,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.BookingID == n.BookingID {
			return // duplicate push
		}
	}
	b.orders = append([]OrderRow{row}, b.orders...)
	b.stats.Pending++
	b.counters.NewOrders++
}

// SetUpdating flags a row while a manual status change is in flight, so the
// next pushed update for it clears the flag on merge.
func (b *Board) SetUpdating(bookingID string, updating bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].BookingID == bookingID {
			b.orders[i].IsUpdating = updating
			return
		}
	}
}

// Snapshot returns a copy of the current view state.
func (b *Board) Snapshot() (Stats, []OrderRow) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows := make([]OrderRow, len(b.orders))
	copy(rows, b.orders)
	return b.stats, rows
}

// CountersSnapshot returns a copy of the operational counters.
func (b *Board) CountersSnapshot() Counters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counters
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04")
}
