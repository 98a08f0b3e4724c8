package pgorders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BearBump/OrderPulse/internal/broker/messages"
)

func TestPGOrders_MirrorFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "orderpulse_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/orderpulse_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := messages.OrderStatusChanged{
		BookingID: "BK-1",
		OrderID:   "ORD-1",
		TenantID:  7,
		Status:    "confirmed",
		StatusRaw: "Confirmed",
		UpdatedAt: at,
	}
	require.NoError(t, st.ApplyStatusChanged(ctx, first))
	// At-least-once delivery: replay must not duplicate the event.
	require.NoError(t, st.ApplyStatusChanged(ctx, first))

	require.NoError(t, st.ApplyStatusChanged(ctx, messages.OrderStatusChanged{
		BookingID:    "BK-1",
		Status:       "canceled",
		StatusRaw:    "Canceled",
		Message:      "customer request",
		CancelReason: "customer request",
		UpdatedAt:    at.Add(5 * time.Minute),
	}))

	o, err := st.GetOrder(ctx, "BK-1")
	require.NoError(t, err)
	require.Equal(t, "canceled", o.Status)
	require.Equal(t, "ORD-1", o.OrderID) // empty order_id in the second event must not erase it
	require.Equal(t, int64(7), o.TenantID)
	require.Equal(t, "customer request", o.CancelReason)

	evs, err := st.ListStatusEvents(ctx, "BK-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, "canceled", evs[0].Status) // newest first

	_, err = st.GetOrder(ctx, "BK-unknown")
	require.ErrorIs(t, err, ErrNotFound)

	// Позиции: старый сэмпл не должен перетирать новый.
	newer := messages.UserLocationUpdated{
		BookingID: "BK-1", TenantID: 7,
		Latitude: 51.2, Longitude: 71.5,
		Timestamp: at.Add(2 * time.Minute),
	}
	older := messages.UserLocationUpdated{
		BookingID: "BK-1", TenantID: 7,
		Latitude: 51.1, Longitude: 71.4,
		Timestamp: at.Add(1 * time.Minute),
	}
	require.NoError(t, st.ApplyLocationUpdated(ctx, newer))
	require.NoError(t, st.ApplyLocationUpdated(ctx, older))

	l, err := st.GetLocation(ctx, "BK-1")
	require.NoError(t, err)
	require.Equal(t, 51.2, l.Latitude)
	require.WithinDuration(t, newer.Timestamp, l.SampledAt, time.Second)
}
