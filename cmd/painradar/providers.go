package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	// Source kinds self-register with the source registry.
	_ "github.com/Strob0t/painradar/internal/adapter/apisource"
	_ "github.com/Strob0t/painradar/internal/adapter/browsersource"
	_ "github.com/Strob0t/painradar/internal/adapter/htmlsource"

	"github.com/Strob0t/painradar/internal/adapter/litellm"
	prnats "github.com/Strob0t/painradar/internal/adapter/nats"
	"github.com/Strob0t/painradar/internal/adapter/natskv"
	protel "github.com/Strob0t/painradar/internal/adapter/otel"
	"github.com/Strob0t/painradar/internal/adapter/postgres"
	"github.com/Strob0t/painradar/internal/adapter/redis"
	"github.com/Strob0t/painradar/internal/adapter/ristretto"
	"github.com/Strob0t/painradar/internal/adapter/sqlite"
	"github.com/Strob0t/painradar/internal/adapter/tiered"
	"github.com/Strob0t/painradar/internal/config"
	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/port/cache"
	"github.com/Strob0t/painradar/internal/port/ledger"
	"github.com/Strob0t/painradar/internal/port/source"
	"github.com/Strob0t/painradar/internal/resilience"
	"github.com/Strob0t/painradar/internal/service"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg     *config.Config
	metrics *protel.Metrics
	pool    *resilience.Pool
	queries *service.QueryService
	queue   *prnats.Queue // nil without NATS
	sweeper *sqlite.Cache // nil unless the sqlite cache is in use

	closers []func()
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

// buildApp wires infrastructure and services from cfg. On error every
// resource acquired so far is released.
func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.metrics, err = protel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// NATS is optional; the KV cache and the event subjects need it.
	if cfg.NATS.URL != "" {
		a.queue, err = prnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		q := a.queue
		a.onClose(func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain failed", "error", err)
			}
		})
	}

	var db *sql.DB
	if cfg.Cache.Backend == "sqlite" || cfg.Ledger.Backend == "sqlite" {
		db, err = sqlite.Open(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = db.Close() })
	}

	store, err := a.buildCache(ctx, db)
	if err != nil {
		return nil, err
	}
	rc := service.NewResultCache(store)

	l, err := a.buildLedger(ctx, db)
	if err != nil {
		return nil, err
	}

	sources, err := a.buildSources(rc)
	if err != nil {
		return nil, err
	}

	a.pool, err = resilience.NewPool(cfg.Summarizer.Credentials, resilience.WithCooldown(cfg.Summarizer.Cooldown))
	switch {
	case errors.Is(err, domain.ErrNoCredentials):
		slog.Warn("no summarizer credentials configured; summaries will be unavailable")
	case err != nil:
		return nil, fmt.Errorf("credential pool: %w", err)
	}
	caller := resilience.NewCaller(a.pool,
		resilience.WithMaxRetries(cfg.Summarizer.MaxRetries),
		resilience.WithAttemptTimeout(cfg.Summarizer.AttemptTimeout),
		resilience.WithBackoff(cfg.Summarizer.Backoff, cfg.Summarizer.MaxBackoff),
		resilience.WithObserver(func(at resilience.Attempt) {
			outcome := "success"
			if at.Kind != "" {
				outcome = string(at.Kind)
			}
			a.metrics.RecordLLMAttempt(outcome)
		}),
	)

	summaries := service.NewSummaryService(litellm.NewClient(cfg.Summarizer.URL), caller, rc, cfg.Summarizer)
	agg := service.NewAggregateService(sources, summaries, cfg.Aggregation, service.WithMetrics(a.metrics))

	if a.queue != nil {
		a.queries = service.NewQueryService(agg, l, a.queue)
	} else {
		a.queries = service.NewQueryService(agg, l, nil)
	}

	slog.Info("services ready",
		"sources", agg.Sources(),
		"cache", cfg.Cache.Backend,
		"ledger", cfg.Ledger.Backend,
		"credentials", a.pool.Stats().Total,
	)
	return a, nil
}

// buildCache returns ristretto as L1, fronting the configured durable L2.
func (a *app) buildCache(ctx context.Context, db *sql.DB) (cache.Cache, error) {
	cfg := a.cfg.Cache
	l1, err := ristretto.New(cfg.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	a.onClose(l1.Close)

	var l2 cache.Cache
	switch cfg.Backend {
	case "sqlite":
		sc := sqlite.NewCache(db)
		a.sweeper = sc
		l2 = sc
	case "nats":
		if a.queue == nil {
			return nil, errors.New("cache backend nats requires nats.url")
		}
		// Entries expire individually; the bucket bound only reaps leftovers.
		maxAge := max(a.cfg.Summarizer.SummaryTTL, a.cfg.Aggregation.DefaultTTL)
		kv, err := natskv.Open(ctx, a.queue.JetStream(), cfg.NATSBucket, maxAge)
		if err != nil {
			return nil, fmt.Errorf("nats kv: %w", err)
		}
		l2 = kv
	case "redis":
		rc, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = rc.Close() })
		if err := rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		l2 = rc
	case "none":
		return l1, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return tiered.New(l1, l2, cfg.L1TTL), nil
}

// buildLedger returns the query history store. A nil ledger disables history.
func (a *app) buildLedger(ctx context.Context, db *sql.DB) (ledger.Ledger, error) {
	switch a.cfg.Ledger.Backend {
	case "sqlite":
		return sqlite.NewLedger(db), nil
	case "postgres":
		version, err := postgres.RunMigrations(ctx, a.cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied", "version", version)

		pool, err := postgres.NewPool(ctx, a.cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.onClose(pool.Close)
		return postgres.NewLedger(pool), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", a.cfg.Ledger.Backend)
	}
}

// buildSources instantiates every enabled source and wraps it with the
// result cache and a per-source breaker.
func (a *app) buildSources(rc *service.ResultCache) ([]source.Source, error) {
	cfg := a.cfg
	out := make([]source.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if !sc.IsEnabled() {
			slog.Info("source disabled", "source", sc.Name)
			continue
		}
		spec := source.Spec{
			Name:    sc.Name,
			Kind:    sc.Kind,
			Limit:   sc.Limit,
			TTL:     sc.TTL,
			Timeout: sc.Timeout,
			Options: make(map[string]string, len(sc.Options)+1),
		}
		for k, v := range sc.Options {
			spec.Options[k] = v
		}
		if spec.TTL <= 0 {
			spec.TTL = cfg.Aggregation.DefaultTTL
		}
		if spec.Timeout <= 0 {
			spec.Timeout = cfg.Aggregation.DefaultTimeout
		}
		if spec.Kind == "browser" && spec.Options["remote_url"] == "" && cfg.Browser.RemoteURL != "" {
			spec.Options["remote_url"] = cfg.Browser.RemoteURL
		}

		src, err := source.New(spec)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		if c, ok := src.(io.Closer); ok {
			a.onClose(func() { _ = c.Close() })
		}
		breaker := resilience.NewBreaker(cfg.Aggregation.BreakerFailures, cfg.Aggregation.BreakerOpenFor)
		out = append(out, service.NewCachedSource(src, spec, rc, breaker))
	}
	return out, nil
}
