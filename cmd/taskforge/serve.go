package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskForge/internal/adapter/dircache"
	tfhttp "github.com/Strob0t/TaskForge/internal/adapter/http"
	tfnats "github.com/Strob0t/TaskForge/internal/adapter/nats"
	"github.com/Strob0t/TaskForge/internal/adapter/natskv"
	tfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/adapter/ristretto"
	"github.com/Strob0t/TaskForge/internal/adapter/tiered"
	"github.com/Strob0t/TaskForge/internal/adapter/ws"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/middleware"
	"github.com/Strob0t/TaskForge/internal/port/cache"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/notifier"
	"github.com/Strob0t/TaskForge/internal/resilience"
	"github.com/Strob0t/TaskForge/internal/service"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and WebSocket event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cc, cfg)
		},
	}
}

func serve(ctx context.Context, cc *commandContext, cfg *config.Config) error {
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"nats", cfg.NATS.Enabled,
		"log_level", cfg.Logging.Level,
	)

	// --- Observability ---

	shutdownOTEL, err := tfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := tfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---

	b, err := cc.openBackend(ctx, true)
	if err != nil {
		return err
	}

	// --- Messaging and caches ---

	var (
		queue *tfnats.Queue
		l2    cache.Cache
		sinks []notifier.Notifier
	)
	if cfg.NATS.Enabled {
		queue, err = tfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()

		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		l2 = natskv.New(kv)

		breaker := resilience.NewBreaker("nats", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		sinks = append(sinks, tfnats.NewPublisher(queue, breaker))
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	shared := tiered.New(l1, l2, cfg.Cache.L2TTL)

	// --- Engine ---

	hub := ws.NewHub(cfg.Server.CORSOrigin, nil)
	sinks = append(sinks, hub)
	dispatcher := service.NewDispatcher(sinks, cfg.Engine, metrics)

	engine := service.NewEngine(b.store,
		service.WithDirectory(dircache.New(b.store, shared, cfg.Cache.DirectoryTTL)),
		service.WithMetrics(metrics),
		service.WithDispatcher(dispatcher),
		service.WithConfig(cfg.Engine),
	)
	defer engine.Close()

	// --- HTTP ---

	limiter, stopLimiter := middleware.NewRateLimiterFromConfig(cfg.Rate)
	defer stopLimiter()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(tfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(tfhttp.SecurityHeaders)
	r.Use(tfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tfotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	r.Get("/health", healthHandler(b.store, queue, hub))
	r.Get("/ws", hub.HandleWS)

	api := r.With(limiter.Handler, chimw.Timeout(cfg.Server.RequestTimeout))
	tfhttp.MountRoutes(api, &tfhttp.Handlers{Engine: engine},
		middleware.Idempotency(shared, cfg.Idempotency.TTL))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type healthStatus struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	NATS        string `json:"nats"`
	Subscribers int    `json:"ws_connections"`
}

// healthHandler reports 503 when the database is unreachable. A disconnected
// broker only degrades notifications and is reported without failing.
func healthHandler(store database.Store, queue *tfnats.Queue, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := healthStatus{Status: "ok", Database: "ok", NATS: "disabled", Subscribers: hub.ConnectionCount()}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			st.Status, st.Database = "unavailable", err.Error()
			code = http.StatusServiceUnavailable
		}
		if queue != nil {
			st.NATS = "ok"
			if !queue.IsConnected() {
				st.NATS = "disconnected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	}
}
