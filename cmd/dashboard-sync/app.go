package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/config"
	"github.com/BearBump/OrderPulse/internal/api/orderapi"
	"github.com/BearBump/OrderPulse/internal/auth"
	"github.com/BearBump/OrderPulse/internal/broker/kafka"
	"github.com/BearBump/OrderPulse/internal/cache"
	"github.com/BearBump/OrderPulse/internal/cache/rediscache"
	"github.com/BearBump/OrderPulse/internal/integrations/signalhub"
	"github.com/BearBump/OrderPulse/internal/realtime/membership"
	"github.com/BearBump/OrderPulse/internal/realtime/router"
	"github.com/BearBump/OrderPulse/internal/services/bridge"
	"github.com/BearBump/OrderPulse/internal/services/dashboard"
	"github.com/BearBump/OrderPulse/internal/services/mirror"
	"github.com/BearBump/OrderPulse/internal/storage/pgorders"
)

type dashFactories struct {
	newCache       func(cfg *config.Config) cache.BytesCache
	newPuller      func(cfg *config.Config) dashboard.Puller
	newRateLimiter func(cfg *config.Config) dashboard.RateLimiter
	newPublisher   func(cfg *config.Config) bridge.Publisher
	newSink        func(cfg *config.Config) (sink mirror.Sink, closeFn func(), err error)
	newConsumer    func(cfg *config.Config) mirror.Consumer
}

func defaultDashFactories() dashFactories {
	return dashFactories{
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(cfg.Redis.Addr())
		},
		newPuller: func(cfg *config.Config) dashboard.Puller {
			return orderapi.New(cfg.OrderAPI.BaseURL)
		},
		newRateLimiter: func(cfg *config.Config) dashboard.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newPublisher: func(cfg *config.Config) bridge.Publisher {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newSink: func(cfg *config.Config) (mirror.Sink, func(), error) {
			st, err := pgorders.New(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config) mirror.Consumer {
			group := cfg.OrderPulse.KafkaConsumerGroup
			if group == "" {
				group = "orderpulse-mirror"
			}
			topics := []string{topicOrDefault(cfg.Kafka.StatusUpdatedTopicName, bridge.TopicStatusUpdated),
				topicOrDefault(cfg.Kafka.LocationUpdatedTopicName, bridge.TopicLocationUpdated)}
			return kafka.NewConsumer(cfg.Kafka.Brokers(), topics, group)
		},
	}
}

func topicOrDefault(topic, def string) string {
	if topic == "" {
		return def
	}
	return topic
}

// RunDashboardSync wires and runs the restaurant-side agent: the notification
// and location hubs, restaurant group membership, the dashboard reconciler,
// the bus bridge and the Postgres mirror. Blocks until the context is
// canceled. onListen, when set, receives the ops server's bound address.
func RunDashboardSync(ctx context.Context, cfg *config.Config, f dashFactories, onListen func(httpAddr string)) error {
	store := auth.NewStore(f.newCache(cfg))
	if cfg.OrderPulse.SessionToken != "" {
		if _, err := store.Init(ctx, cfg.OrderPulse.SessionToken); err != nil {
			return errors.Wrap(err, "init session")
		}
	} else if _, err := store.Resume(ctx); err != nil && !errors.Is(err, auth.ErrNoSession) {
		return errors.Wrap(err, "resume session")
	}

	tenantID := cfg.OrderPulse.TenantID
	if id, ok := store.TenantID(); ok {
		tenantID = id
	}
	if tenantID == 0 {
		return errors.New("tenant id is required (session token or orderpulse.tenant_id)")
	}

	notifConn := signalhub.New(signalhub.Options{
		URL:          cfg.Hubs.NotificationURL,
		TokenFactory: store.TokenFactory(),
	})
	defer notifConn.Stop()
	locConn := signalhub.New(signalhub.Options{
		URL:          cfg.Hubs.LocationURL,
		TokenFactory: store.TokenFactory(),
	})
	defer locConn.Stop()

	r := router.New()
	r.Attach(notifConn)
	r.Attach(locConn)

	restGroups := membership.New(notifConn, membership.JoinRestaurantGroup, membership.LeaveRestaurantGroup)
	if err := restGroups.Join(ctx, tenantID); err != nil {
		return errors.Wrap(err, "join restaurant group")
	}
	locGroups := membership.New(locConn, membership.JoinRestaurantLocationGroup, membership.LeaveRestaurantLocationGroup)
	if err := locGroups.Join(ctx, tenantID); err != nil {
		return errors.Wrap(err, "join restaurant location group")
	}

	board := dashboard.New(tenantID, f.newPuller(cfg),
		dashboard.WithRateLimiter(f.newRateLimiter(cfg)),
		dashboard.WithPageSize(cfg.OrderPulse.OrdersPageSize),
		dashboard.WithRepullLimit(int64(cfg.OrderPulse.RepullLimitPerWindow)))
	locMap := dashboard.NewLocationMap()
	if err := board.Refresh(ctx); err != nil {
		// Нестрашно: push-апдейты и re-pull дотянут состояние.
		slog.Warn("initial dashboard refresh failed", "tenantId", tenantID, "error", err.Error())
	}

	br := bridge.New(f.newPublisher(cfg), tenantID)

	sink, closeSink, err := f.newSink(cfg)
	if err != nil {
		return errors.Wrap(err, "open mirror storage")
	}
	if closeSink != nil {
		defer closeSink()
	}
	m := mirror.New(sink)

	go func() { _ = board.Run(ctx, r, locMap) }()
	go func() { _ = br.Run(ctx, r) }()
	go func() {
		if err := m.Run(ctx, f.newConsumer(cfg)); err != nil && ctx.Err() == nil {
			slog.Error("mirror stopped", "error", err.Error())
		}
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runDashboardHTTPServer(ctx, dashboardHTTPOpts{
			httpAddr:    cfg.OrderPulse.HTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			onListen:    onListen,
			board:       board,
			locMap:      locMap,
			bridge:      br,
			mirror:      m,
			cfg:         cfg,
			hubConnected: map[string]func() bool{
				"notifications": notifConn.Connected,
				"locations":     locConn.Connected,
			},
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil {
			return errors.Wrap(err, "ops http server")
		}
	}

	// Teardown mirrors logout: leave both groups, drop the pins.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = locGroups.Leave(shutdownCtx, tenantID)
	_ = restGroups.Leave(shutdownCtx, tenantID)
	locMap.Clear()
	return ctx.Err()
}
