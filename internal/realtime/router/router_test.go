package router

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/OrderPulse/internal/models"
)

type fakeConn struct {
	handlers map[string]func(json.RawMessage)
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: map[string]func(json.RawMessage){}}
}

func (f *fakeConn) On(event string, fn func(json.RawMessage)) {
	f.handlers[event] = fn
}

func (f *fakeConn) push(t *testing.T, event string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	fn, ok := f.handlers[event]
	require.True(t, ok, "no handler for %s", event)
	fn(b)
}

func TestRouter_NormalizesStatus(t *testing.T) {
	conn := newFakeConn()
	r := New()
	r.Attach(conn)

	ch, cancel := r.StatusUpdates().Subscribe(4)
	defer cancel()

	conn.push(t, EventOrderStatusUpdate, map[string]any{
		"bookingId": "b1",
		"status":    "Delivered",
		"updatedAt": time.Now().UTC(),
	})

	upd := <-ch
	require.Equal(t, "b1", upd.BookingID)
	require.Equal(t, models.StatusCompleted, upd.Status)
	require.Equal(t, "Delivered", upd.StatusRaw)
}

func TestRouter_UnknownStatusPassesThrough(t *testing.T) {
	conn := newFakeConn()
	r := New()
	r.Attach(conn)

	ch, cancel := r.StatusUpdates().Subscribe(4)
	defer cancel()

	conn.push(t, EventOrderStatusUpdate, map[string]any{
		"bookingId": "b1",
		"status":    "ON_HOLD",
	})

	upd := <-ch
	require.Equal(t, "on_hold", upd.Status)
	require.False(t, models.IsTerminal(upd.Status))
}

func TestRouter_PreservesOrder(t *testing.T) {
	conn := newFakeConn()
	r := New()
	r.Attach(conn)

	ch, cancel := r.StatusUpdates().Subscribe(8)
	defer cancel()

	for _, s := range []string{"confirmed", "preparing", "ready"} {
		conn.push(t, EventOrderStatusUpdate, map[string]any{"bookingId": "b1", "status": s})
	}

	require.Equal(t, models.StatusConfirmed, (<-ch).Status)
	require.Equal(t, models.StatusPreparing, (<-ch).Status)
	require.Equal(t, models.StatusReady, (<-ch).Status)
}

func TestRouter_LateSubscriberSeesOnlyLatest(t *testing.T) {
	conn := newFakeConn()
	r := New()
	r.Attach(conn)

	conn.push(t, EventOrderStatusUpdate, map[string]any{"bookingId": "b1", "status": "confirmed"})
	conn.push(t, EventOrderStatusUpdate, map[string]any{"bookingId": "b1", "status": "preparing"})

	ch, cancel := r.StatusUpdates().Subscribe(4)
	defer cancel()

	require.Equal(t, models.StatusPreparing, (<-ch).Status)
	require.Empty(t, ch) // history is not replayed
}

func TestRouter_MalformedPayloadDropped(t *testing.T) {
	conn := newFakeConn()
	r := New()
	r.Attach(conn)

	ch, cancel := r.StatusUpdates().Subscribe(4)
	defer cancel()

	conn.handlers[EventOrderStatusUpdate](json.RawMessage(`{"bookingId":42}`))
	require.Empty(t, ch)

	// Router keeps working after a bad payload.
	conn.push(t, EventOrderStatusUpdate, map[string]any{"bookingId": "b1", "status": "ready"})
	require.Equal(t, models.StatusReady, (<-ch).Status)
}

func TestRouter_LocationAndSharingStreams(t *testing.T) {
	conn := newFakeConn()
	r := New()
	r.Attach(conn)

	locCh, cancelLoc := r.Locations().Subscribe(4)
	defer cancelLoc()
	stopCh, cancelStop := r.SharingStopped().Subscribe(4)
	defer cancelStop()

	conn.push(t, EventUserLocation, models.LocationSample{
		BookingID: "b1", TenantID: 7, Latitude: 12.9, Longitude: 77.6, Timestamp: time.Now().UTC(),
	})
	conn.push(t, EventSharingStopped, models.SharingEvent{BookingID: "b1"})

	loc := <-locCh
	require.Equal(t, "b1", loc.BookingID)
	require.InDelta(t, 12.9, loc.Latitude, 1e-9)

	ev := <-stopCh
	require.Equal(t, "b1", ev.BookingID)
}
