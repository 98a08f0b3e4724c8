// Package messages defines the envelopes the agent publishes onto the bus.
// Other platform services (analytics, the ops mirror) consume them; the
// field set is a contract, change with care.
package messages

import "time"

// OrderStatusChanged mirrors one pushed status update onto the bus.
type OrderStatusChanged struct {
	BookingID string    `json:"booking_id"`
	OrderID   string    `json:"order_id,omitempty"`
	TenantID  int64     `json:"tenant_id,omitempty"`
	Status    string    `json:"status"`
	StatusRaw string    `json:"status_raw,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	CancelReason string `json:"cancel_reason,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
}

// UserLocationUpdated mirrors one location sample onto the bus.
type UserLocationUpdated struct {
	BookingID string    `json:"booking_id"`
	TenantID  int64     `json:"tenant_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
