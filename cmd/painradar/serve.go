package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	prhttp "github.com/Strob0t/painradar/internal/adapter/http"
	"github.com/Strob0t/painradar/internal/adapter/mcp"
	protel "github.com/Strob0t/painradar/internal/adapter/otel"
	"github.com/Strob0t/painradar/internal/middleware"
	"github.com/Strob0t/painradar/internal/port/messagequeue"
)

const (
	shutdownTimeout   = 10 * time.Second
	limiterSweepEvery = time.Minute
	limiterMaxIdle    = 10 * time.Minute
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.String("port", "", "listen port (overrides server.port)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, closer, err := setup(os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()
	if *port != "" {
		cfg.Server.Port = *port
	}

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"cache", cfg.Cache.Backend,
		"ledger", cfg.Ledger.Backend,
		"version", version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOTEL, err := protel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	// --- Services ---
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.sweeper != nil {
		go a.sweeper.RunSweeper(ctx, cfg.Cache.SweepInterval)
	}

	if a.queue != nil && cfg.NATS.Subscribe {
		cancelSub, err := a.queue.Subscribe(ctx, messagequeue.SubjectQueryRequested, a.queries.HandleRequested)
		if err != nil {
			return fmt.Errorf("queries.requested subscriber: %w", err)
		}
		defer cancelSub()
		slog.Info("subscribed", "subject", messagequeue.SubjectQueryRequested)
	}

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	limiter.StartCleanup(ctx, limiterSweepEvery, limiterMaxIdle)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(prhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(prhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(prhttp.SecurityHeaders)
	r.Use(protel.HTTPMiddleware(cfg.OTEL.ServiceName))

	prhttp.MountRoutes(r, &prhttp.Handlers{Queries: a.queries, Pool: a.pool}, limiter)

	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(
			mcp.ServerConfig{Name: "painradar", Version: version, APIKey: cfg.MCP.APIKey},
			mcp.ServerDeps{Queries: a.queries, Pool: a.pool},
		)
		r.Handle(mcp.EndpointPath, mcpSrv.Handler())
		slog.Info("mcp enabled", "path", mcp.EndpointPath, "auth", cfg.MCP.APIKey != "")
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg.Aggregation.Deadline, cfg.Summarizer.AttemptTimeout, cfg.Summarizer.MaxRetries),
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeTimeout covers a full aggregation: the source deadline plus every
// summarizer attempt, with headroom for encoding the response.
func writeTimeout(deadline, attempt time.Duration, retries int) time.Duration {
	return deadline + time.Duration(retries)*attempt + 15*time.Second
}
