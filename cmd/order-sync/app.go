package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/config"
	"github.com/BearBump/OrderPulse/internal/api/orderapi"
	"github.com/BearBump/OrderPulse/internal/auth"
	"github.com/BearBump/OrderPulse/internal/broker/kafka"
	"github.com/BearBump/OrderPulse/internal/cache"
	"github.com/BearBump/OrderPulse/internal/cache/rediscache"
	"github.com/BearBump/OrderPulse/internal/integrations/geosource"
	geofake "github.com/BearBump/OrderPulse/internal/integrations/geosource/fake"
	"github.com/BearBump/OrderPulse/internal/integrations/geosource/httpgeo"
	"github.com/BearBump/OrderPulse/internal/integrations/signalhub"
	"github.com/BearBump/OrderPulse/internal/realtime/membership"
	"github.com/BearBump/OrderPulse/internal/realtime/router"
	"github.com/BearBump/OrderPulse/internal/services/bridge"
	"github.com/BearBump/OrderPulse/internal/services/locsampler"
	"github.com/BearBump/OrderPulse/internal/services/tracker"
)

type appFactories struct {
	newCache     func(cfg *config.Config) cache.BytesCache
	newPuller    func(cfg *config.Config) tracker.Puller
	newGeoSource func(cfg *config.Config) geosource.Client
	newPublisher func(cfg *config.Config) bridge.Publisher
}

func defaultAppFactories() appFactories {
	return appFactories{
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(cfg.Redis.Addr())
		},
		newPuller: func(cfg *config.Config) tracker.Puller {
			return orderapi.New(cfg.OrderAPI.BaseURL)
		},
		newGeoSource: func(cfg *config.Config) geosource.Client {
			// По умолчанию для демо используем fake-источник; реальный девайс
			// подключается через http-мост.
			switch cfg.OrderPulse.GeoSourceMode {
			case "http":
				return httpgeo.New(cfg.OrderPulse.GeoSourceBaseURL)
			case "fake":
				return geofake.New(cfg.OrderPulse.BookingID)
			default:
				return nil // location sharing unsupported on this agent
			}
		},
		newPublisher: func(cfg *config.Config) bridge.Publisher {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
	}
}

// RunOrderSync wires and runs the customer-side agent: one order status hub,
// the booking group, the tracking snapshot, the location sampler and the bus
// bridge. Blocks until the context is canceled. onListen, when set, receives
// the ops server's bound address.
func RunOrderSync(ctx context.Context, cfg *config.Config, f appFactories, onListen func(httpAddr string)) error {
	bookingID := cfg.OrderPulse.BookingID
	if bookingID == "" {
		return errors.New("orderpulse.booking_id is required")
	}

	store := auth.NewStore(f.newCache(cfg))
	if cfg.OrderPulse.SessionToken != "" {
		if _, err := store.Init(ctx, cfg.OrderPulse.SessionToken); err != nil {
			return errors.Wrap(err, "init session")
		}
	} else if _, err := store.Resume(ctx); err != nil && !errors.Is(err, auth.ErrNoSession) {
		return errors.Wrap(err, "resume session")
	}

	conn := signalhub.New(signalhub.Options{
		URL:          cfg.Hubs.OrderStatusURL,
		TokenFactory: store.TokenFactory(),
	})
	defer conn.Stop()

	r := router.New()
	r.Attach(conn)

	groups := membership.New(conn, membership.JoinBookingGroup, membership.LeaveBookingGroup)
	if err := groups.Join(ctx, bookingID); err != nil {
		return errors.Wrap(err, "join booking group")
	}

	interval := time.Duration(cfg.OrderPulse.LocationIntervalSeconds) * time.Second
	sampler := locsampler.New(bookingID, f.newGeoSource(cfg), conn,
		locsampler.WithInterval(interval))

	snapshotTTL := time.Duration(cfg.OrderPulse.SnapshotTTLSeconds) * time.Second
	tr := tracker.New(bookingID, f.newPuller(cfg),
		tracker.WithCache(f.newCache(cfg)),
		tracker.WithStopper(sampler),
		tracker.WithCacheTTL(snapshotTTL))
	if err := tr.Load(ctx); err != nil {
		// Нестрашно: первый же push-апдейт дотянет снапшот.
		slog.Warn("initial snapshot load failed", "bookingId", bookingID, "error", err.Error())
	}

	tenantID, _ := store.TenantID()
	br := bridge.New(f.newPublisher(cfg), tenantID)

	go func() { _ = tr.Run(ctx, r) }()
	go func() { _ = br.Run(ctx, r) }()

	if err := sampler.Start(ctx); err != nil {
		if errors.Is(err, locsampler.ErrUnsupported) {
			slog.Info("location sharing disabled", "bookingId", bookingID)
		} else {
			slog.Warn("location sharing degraded", "bookingId", bookingID, "error", err.Error())
		}
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runOrderSyncHTTPServer(ctx, orderSyncHTTPOpts{
			httpAddr:     cfg.OrderPulse.HTTPAddr,
			onListen:     onListen,
			tracker:      tr,
			sampler:      sampler,
			bridge:       br,
			hubConnected: conn.Connected,
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil {
			return errors.Wrap(err, "ops http server")
		}
	}

	// Teardown mirrors logout: stop sharing, leave the group, close the hub.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = sampler.Stop(shutdownCtx)
	_ = groups.Leave(shutdownCtx, bookingID)
	return ctx.Err()
}
