// Package router turns raw named hub events into typed update streams.
// It is a pass-through, not a queue: events go out in arrival order, nothing
// is retained once delivered, and a late subscriber only sees the latest
// value of each stream.
package router

import (
	"encoding/json"
	"log/slog"

	"github.com/BearBump/OrderPulse/internal/models"
	"github.com/BearBump/OrderPulse/internal/realtime/stream"
)

// Hub event names pushed by the backend.
const (
	EventOrderStatusUpdate   = "ReceiveOrderStatusUpdate"
	EventNewOrder            = "ReceiveNewOrder"
	EventUserLocation        = "ReceiveUserLocation"
	EventSharingStarted      = "UserStartedLocationSharing"
	EventSharingStopped      = "UserStoppedLocationSharing"
	EventGroupJoined         = "GroupJoined"
	EventLocationGroupJoined = "JoinedRestaurantLocationGroup"
)

// Conn is the handler-registration slice of the hub connection.
type Conn interface {
	On(event string, fn func(payload json.RawMessage))
}

type Router struct {
	status    *stream.Stream[models.StatusUpdate]
	newOrders *stream.Stream[models.NewOrderNotification]
	locations *stream.Stream[models.LocationSample]
	started   *stream.Stream[models.SharingEvent]
	stopped   *stream.Stream[models.SharingEvent]
}

func New() *Router {
	return &Router{
		status:    stream.NewReplay[models.StatusUpdate](),
		newOrders: stream.NewReplay[models.NewOrderNotification](),
		locations: stream.NewReplay[models.LocationSample](),
		started:   stream.New[models.SharingEvent](),
		stopped:   stream.New[models.SharingEvent](),
	}
}

// Attach registers the router's handlers on a connection. A router may be
// attached to more than one hub (the dashboard hears status updates on the
// notification hub and locations on the location hub).
func (r *Router) Attach(conn Conn) {
	conn.On(EventOrderStatusUpdate, r.onStatusUpdate)
	conn.On(EventNewOrder, decodeInto(EventNewOrder, r.newOrders))
	conn.On(EventUserLocation, decodeInto(EventUserLocation, r.locations))
	conn.On(EventSharingStarted, decodeInto(EventSharingStarted, r.started))
	conn.On(EventSharingStopped, decodeInto(EventSharingStopped, r.stopped))
	conn.On(EventGroupJoined, func(payload json.RawMessage) {
		slog.Info("group joined", "detail", string(payload))
	})
	conn.On(EventLocationGroupJoined, func(payload json.RawMessage) {
		slog.Info("location group joined", "detail", string(payload))
	})
}

func (r *Router) onStatusUpdate(payload json.RawMessage) {
	var upd models.StatusUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		slog.Error("decode status update", "error", err.Error())
		return
	}
	upd.StatusRaw = upd.Status
	upd.Status = models.NormalizeStatus(upd.Status)
	r.status.Publish(upd)
}

func decodeInto[T any](event string, s *stream.Stream[T]) func(json.RawMessage) {
	return func(payload json.RawMessage) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			slog.Error("decode hub event", "event", event, "error", err.Error())
			return
		}
		s.Publish(v)
	}
}

// StatusUpdates carries normalized order status updates (replay latest).
func (r *Router) StatusUpdates() *stream.Stream[models.StatusUpdate] { return r.status }

// NewOrders carries new-order notifications (replay latest).
func (r *Router) NewOrders() *stream.Stream[models.NewOrderNotification] { return r.newOrders }

// Locations carries user location samples (replay latest).
func (r *Router) Locations() *stream.Stream[models.LocationSample] { return r.locations }

// SharingStarted and SharingStopped are fire-and-forget lifecycle markers.
func (r *Router) SharingStarted() *stream.Stream[models.SharingEvent] { return r.started }
func (r *Router) SharingStopped() *stream.Stream[models.SharingEvent] { return r.stopped }
