package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/OrderPulse/config"
	"github.com/BearBump/OrderPulse/internal/api/orderapi"
	"github.com/BearBump/OrderPulse/internal/broker/messages"
	"github.com/BearBump/OrderPulse/internal/cache"
	"github.com/BearBump/OrderPulse/internal/integrations/signalhub/hubtest"
	"github.com/BearBump/OrderPulse/internal/realtime/membership"
	"github.com/BearBump/OrderPulse/internal/services/bridge"
	"github.com/BearBump/OrderPulse/internal/services/dashboard"
	"github.com/BearBump/OrderPulse/internal/services/mirror"
)

type fakePuller struct{}

func (fakePuller) GetDashboardStats(_ context.Context, _ int64) (orderapi.DashboardStats, error) {
	return orderapi.DashboardStats{PendingBookings: 1}, nil
}

func (fakePuller) GetOrders(_ context.Context, _ orderapi.OrdersFilter) (orderapi.OrdersPage, error) {
	return orderapi.OrdersPage{Items: []orderapi.OrderSummary{
		{BookingID: "BK-1", Status: "confirmed"},
	}}, nil
}

type fakeSink struct{}

func (fakeSink) ApplyStatusChanged(_ context.Context, _ messages.OrderStatusChanged) error { return nil }
func (fakeSink) ApplyLocationUpdated(_ context.Context, _ messages.UserLocationUpdated) error {
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ string, _, _ []byte) error { return nil }

type idleConsumer struct{}

func (idleConsumer) Consume(ctx context.Context, _ func(topic string, key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func testFactories() dashFactories {
	return dashFactories{
		newCache:       func(*config.Config) cache.BytesCache { return nil },
		newPuller:      func(*config.Config) dashboard.Puller { return fakePuller{} },
		newRateLimiter: func(*config.Config) dashboard.RateLimiter { return nil },
		newPublisher:   func(*config.Config) bridge.Publisher { return noopPublisher{} },
		newSink: func(*config.Config) (mirror.Sink, func(), error) {
			return fakeSink{}, nil, nil
		},
		newConsumer: func(*config.Config) mirror.Consumer { return idleConsumer{} },
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRunDashboardSync_JoinsGroupsAndServesOps(t *testing.T) {
	notifHub := hubtest.New()
	defer notifHub.Close()
	locHub := hubtest.New()
	defer locHub.Close()

	var opsAddr string
	addrCh := make(chan string, 1)

	cfg := &config.Config{
		Hubs: config.HubsConfig{
			NotificationURL: notifHub.URL(),
			LocationURL:     locHub.URL(),
		},
		OrderPulse: config.OrderPulseConfig{
			TenantID: 7,
			HTTPAddr: "127.0.0.1:0",
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunDashboardSync(ctx, cfg, testFactories(), func(addr string) { addrCh <- addr })
	}()

	waitFor(t, func() bool { return notifHub.InvocationCount(membership.JoinRestaurantGroup) == 1 })
	waitFor(t, func() bool { return locHub.InvocationCount(membership.JoinRestaurantLocationGroup) == 1 })

	select {
	case opsAddr = <-addrCh:
	case <-time.After(3 * time.Second):
		t.Fatal("ops server did not start")
	}

	resp, err := http.Get("http://" + opsAddr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("agent did not shut down")
	}

	// Logout teardown leaves both groups.
	require.Equal(t, 1, notifHub.InvocationCount(membership.LeaveRestaurantGroup))
	require.Equal(t, 1, locHub.InvocationCount(membership.LeaveRestaurantLocationGroup))
}

func TestRunDashboardSync_TenantRequired(t *testing.T) {
	cfg := &config.Config{}
	err := RunDashboardSync(context.Background(), cfg, testFactories(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tenant id is required")
}
