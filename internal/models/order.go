package models

import (
	"strings"
	"time"
)

// Нормализованные статусы заказа (can be extended).
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusRejected  = "rejected"
)

// NormalizeStatus maps a raw server status onto the canonical vocabulary.
// The backend still emits the legacy "delivered" for completed orders.
// Unrecognized statuses are returned lower-cased so comparisons stay cheap
// downstream; callers treat anything non-canonical as pending-like.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "delivered" {
		return StatusCompleted
	}
	return s
}

// IsTerminal reports whether no further status transitions are expected.
func IsTerminal(status string) bool {
	switch NormalizeStatus(status) {
	case StatusCompleted, StatusCanceled, StatusRejected:
		return true
	}
	return false
}

// StatusUpdate is a pushed incremental order update. Produced by the server,
// never mutated after receipt — only merged into derived view state.
type StatusUpdate struct {
	BookingID     string         `json:"bookingId"`
	OrderID       string         `json:"orderId,omitempty"`
	Status        string         `json:"status"`
	StatusRaw     string         `json:"-"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Details       *UpdateDetails `json:"details,omitempty"`
}

type UpdateDetails struct {
	CancelReason     string          `json:"cancelReason,omitempty"`
	RejectReason     string          `json:"rejectReason,omitempty"`
	EstimatedMinutes int             `json:"estimatedMinutes,omitempty"`
	DeliveryPerson   *DeliveryPerson `json:"deliveryPerson,omitempty"`
}

type DeliveryPerson struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	ID    string `json:"id,omitempty"`
}

// NewOrderNotification announces a freshly confirmed order to a tenant.
type NewOrderNotification struct {
	BookingID        string      `json:"bookingId"`
	OrderID          string      `json:"orderId"`
	TenantID         int64       `json:"tenantId"`
	PassengerName    string      `json:"passengerName"`
	PassengerPhone   string      `json:"passengerPhone,omitempty"`
	Items            []OrderItem `json:"items,omitempty"`
	TotalAmount      float64     `json:"totalAmount"`
	BusNumber        string      `json:"busNumber,omitempty"`
	OrderConfirmedAt time.Time   `json:"orderConfirmedAt"`
}

type OrderItem struct {
	ItemName string  `json:"itemName"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// LocationSample is one device fix for a booking. Superseded wholesale by
// the next sample; no client-side history beyond the latest.
type LocationSample struct {
	BookingID string    `json:"bookingId"`
	TenantID  int64     `json:"tenantId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SharingEvent marks a booking starting or stopping location sharing.
type SharingEvent struct {
	BookingID string `json:"bookingId"`
	TenantID  int64  `json:"tenantId,omitempty"`
}

// TrackingSnapshot is the full pulled state for one booking, including the
// status history the push channel never carries.
type TrackingSnapshot struct {
	BookingID      string          `json:"bookingId"`
	OrderID        string          `json:"orderId"`
	TenantID       int64           `json:"tenantId,omitempty"`
	CurrentStatus  string          `json:"currentStatus"`
	BusNumber      string          `json:"busNumber,omitempty"`
	PassengerPhone string          `json:"passengerPhone,omitempty"`
	Items          []OrderItem     `json:"items,omitempty"`
	TotalAmount    float64         `json:"totalAmount"`
	StatusHistory  []StatusHistory `json:"statusHistory,omitempty"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	RejectReason   string          `json:"rejectReason,omitempty"`
}

type StatusHistory struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}
