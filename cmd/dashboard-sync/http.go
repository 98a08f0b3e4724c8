package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/OrderPulse/config"
	"github.com/BearBump/OrderPulse/internal/services/bridge"
	"github.com/BearBump/OrderPulse/internal/services/dashboard"
	"github.com/BearBump/OrderPulse/internal/services/mirror"
)

type dashboardHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	board  *dashboard.Board
	locMap *dashboard.LocationMap
	bridge *bridge.Bridge
	mirror *mirror.Mirror
	cfg    *config.Config

	hubConnected map[string]func() bool
}

func runDashboardHTTPServer(ctx context.Context, opts dashboardHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8091"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{}
		if opts.board != nil {
			stats, _ := opts.board.Snapshot()
			out["dashboard"] = stats
			out["counters"] = opts.board.CountersSnapshot()
		}
		if opts.bridge != nil {
			out["bridge"] = opts.bridge.Stats()
		}
		if opts.mirror != nil {
			out["mirror"] = opts.mirror.Stats()
		}
		if len(opts.hubConnected) > 0 {
			hubs := map[string]bool{}
			for name, connected := range opts.hubConnected {
				hubs[name] = connected()
			}
			out["hubs"] = hubs
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.board == nil {
			_, _ = w.Write([]byte(`{"error":"board not wired"}`))
			return
		}
		_, rows := opts.board.Snapshot()
		_ = json.NewEncoder(w).Encode(rows)
	})

	r.Get("/locations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.locMap == nil {
			_, _ = w.Write([]byte(`{"error":"location map not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.locMap.Pins())
	})

	// Forced full re-pull, bypassing the stale-update rate limiter.
	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.board == nil {
			_, _ = w.Write([]byte(`{"error":"board not wired"}`))
			return
		}
		if err := opts.board.Refresh(r.Context()); err != nil {
			http.Error(w, `{"error":"refresh failed"}`, http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	// Swagger is optional for the sync agent; serve only when a spec file is
	// provided (same no-store + cachebuster trick as the other services).
	if opts.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})

		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
