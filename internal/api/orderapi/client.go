// Package orderapi is the HTTP pull side of the sync layer: full-state
// fetches that the push channel's incremental updates are merged into.
package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/models"
)

// ErrNotFound maps the backend's 404 for an unknown booking.
var ErrNotFound = errors.New("order not found")

// pullRetries: transient pull failures are retried twice before giving up,
// matching the backend clients elsewhere on the platform.
const pullRetries = 2

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// envelope is the backend's standard response wrapper.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

type DashboardStats struct {
	PendingBookings        int     `json:"pendingBookings"`
	PreparingBookings      int     `json:"preparingBookings"`
	ReadyToDeliverBookings int     `json:"readyToDeliverBookings"`
	CompletedBookings      int     `json:"completedBookings"`
	CanceledBookings       int     `json:"canceledBookings"`
	TotalRevenue           float64 `json:"totalRevenue"`
}

type OrderSummary struct {
	BookingID     string    `json:"bookingId"`
	OrderID       string    `json:"orderId"`
	PassengerName string    `json:"passengerName"`
	BusNumber     string    `json:"busNumber"`
	Status        string    `json:"bookingStatus"`
	TotalAmount   float64   `json:"totalAmount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type OrdersPage struct {
	Items      []OrderSummary `json:"items"`
	TotalCount int            `json:"totalCount"`
	PageNumber int            `json:"pageNumber"`
	PageSize   int            `json:"pageSize"`
}

type OrdersFilter struct {
	TenantID   int64
	PageNumber int
	PageSize   int
}

// GetTrackingSnapshot pulls the full tracking state for one booking,
// including its status history.
func (c *Client) GetTrackingSnapshot(ctx context.Context, bookingID string) (*models.TrackingSnapshot, error) {
	if bookingID == "" {
		return nil, errors.New("bookingId is required")
	}
	var env envelope[*models.TrackingSnapshot]
	if err := c.get(ctx, "/ordertracking/"+url.PathEscape(bookingID), nil, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		return nil, errors.Errorf("tracking snapshot: %s", env.Message)
	}
	env.Data.CurrentStatus = models.NormalizeStatus(env.Data.CurrentStatus)
	return env.Data, nil
}

// GetDashboardStats pulls the per-status aggregates for a tenant.
func (c *Client) GetDashboardStats(ctx context.Context, tenantID int64) (DashboardStats, error) {
	q := url.Values{"tenantId": []string{strconv.FormatInt(tenantID, 10)}}
	var env envelope[DashboardStats]
	if err := c.get(ctx, "/dashboard/stats", q, &env); err != nil {
		return DashboardStats{}, err
	}
	if !env.Success {
		return DashboardStats{}, errors.Errorf("dashboard stats: %s", env.Message)
	}
	return env.Data, nil
}

// GetOrders pulls one page of a tenant's orders, newest first.
func (c *Client) GetOrders(ctx context.Context, f OrdersFilter) (OrdersPage, error) {
	if f.PageNumber <= 0 {
		f.PageNumber = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	q := url.Values{
		"tenantId":   []string{strconv.FormatInt(f.TenantID, 10)},
		"pageNumber": []string{strconv.Itoa(f.PageNumber)},
		"pageSize":   []string{strconv.Itoa(f.PageSize)},
		"sortBy":     []string{"CreatedAt"},
		"sortOrder":  []string{"desc"},
	}
	var env envelope[OrdersPage]
	if err := c.get(ctx, "/orders", q, &env); err != nil {
		return OrdersPage{}, err
	}
	if !env.Success {
		return OrdersPage{}, errors.Errorf("orders page: %s", env.Message)
	}
	return env.Data, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path += path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= pullRetries; attempt++ {
		lastErr = c.getOnce(ctx, u.String(), out)
		if lastErr == nil || errors.Is(lastErr, ErrNotFound) || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("order api http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
