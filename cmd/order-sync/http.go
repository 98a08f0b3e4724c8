package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/OrderPulse/internal/services/bridge"
	"github.com/BearBump/OrderPulse/internal/services/locsampler"
	"github.com/BearBump/OrderPulse/internal/services/tracker"
)

type orderSyncHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	tracker *tracker.Tracker
	sampler *locsampler.Sampler
	bridge  *bridge.Bridge

	hubConnected func() bool
}

func runOrderSyncHTTPServer(ctx context.Context, opts orderSyncHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8090"
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
		if opts.sampler != nil {
			out["sampler"] = opts.sampler.Stats()
		}
		if opts.bridge != nil {
			out["bridge"] = opts.bridge.Stats()
		}
		if opts.hubConnected != nil {
			out["hubConnected"] = opts.hubConnected()
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/steps", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.tracker == nil {
			_, _ = w.Write([]byte(`{"error":"tracker not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.tracker.Steps())
	})

	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.tracker == nil {
			_, _ = w.Write([]byte(`{"error":"tracker not wired"}`))
			return
		}
		snap, ok := opts.tracker.Snapshot()
		if !ok {
			http.Error(w, `{"error":"no snapshot yet"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(snap)
	})

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
