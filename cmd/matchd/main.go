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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/feed"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("matchd exited", "error", err)
		os.Exit(1)
	}
	slog.Info("matchd stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting matchd",
		"port", cfg.Server.Port,
		"sources", len(cfg.Sources),
		"workers", cfg.Engine.Workers,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	reg, err := registry.New(cfg.Sources, cfg.Engine, m)
	if err != nil {
		return fmt.Errorf("creating registry: %w", err)
	}
	defer reg.Close()
	go reg.Run(ctx)

	checker := health.NewChecker(2 * time.Second)
	checker.Register("registry", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d sources", len(reg.All()))}
	})

	db, err := startSources(ctx, cfg, reg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checker.RegisterOptional("postgres", health.FromPing(db.Ping))
	}

	var queryCache *cache.QueryCache
	var remote cache.Remote
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using local cache only", "error", err)
		} else {
			defer redisClient.Close()
			remote = redisClient
			checker.RegisterOptional("redis", health.FromPing(redisClient.Ping))
		}
	}
	queryCache, err = cache.New(cfg.Cache.LocalSize, remote, cfg.Redis.CacheTTL, m)
	if err != nil {
		return err
	}

	var ingestProducer, analyticsProducer kafka.Publisher
	if cfg.Kafka.Enabled {
		ip := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ItemIngest, false)
		defer ip.Close()
		ingestProducer = ip
		ap := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, true)
		defer ap.Close()
		analyticsProducer = ap

		// Engines start empty, so every process replays the topic under its
		// own group instead of resuming a shared offset.
		group := cfg.Kafka.ConsumerGroup + "-" + uuid.NewString()
		consumer := feed.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ItemIngest,
			feed.HandleMessage(reg), kafka.FromBeginning(), kafka.WithGroup(group)))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("feed consumer stopped", "error", err)
			}
		}()
	}

	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(analyticsProducer, aggregator, 100, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()

	exec := executor.New(reg, cfg.Search, cfg.Engine)
	searchH := handler.New(exec, reg, queryCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	ingestH := ingesthandler.New(publisher.New(reg, ingestProducer))
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/sources", searchH.Sources)
	mux.HandleFunc("GET /api/v1/sources/{name}", searchH.Source)
	mux.HandleFunc("POST /api/v1/items", ingestH.Ingest)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", searchH.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cfg.Server.CORSOrigins),
		middleware.Metrics(m),
		middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("matchd listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startSources loads dir and postgres sources in the background. The
// returned client is nil when no source reads from Postgres.
func startSources(ctx context.Context, cfg *config.Config, reg *registry.Registry) (*postgres.Client, error) {
	var db *postgres.Client
	for _, sc := range cfg.Sources {
		src, err := reg.Get(sc.Name)
		if err != nil {
			return nil, err
		}
		log := slog.Default().With("source", sc.Name, "kind", sc.Kind)

		switch sc.Kind {
		case config.SourceDir:
			dir := source.NewDir(sc.Path, src)
			go func() {
				n, err := dir.Load(ctx)
				if err != nil {
					log.Error("directory load failed", "path", sc.Path, "error", err)
					return
				}
				log.Info("directory loaded", "path", sc.Path, "items", n)
				if !sc.Watch {
					return
				}
				if err := dir.Watch(ctx); err != nil {
					log.Error("directory watch stopped", "path", sc.Path, "error", err)
				}
			}()
		case config.SourcePostgres:
			if db == nil {
				db, err = postgres.New(ctx, cfg.Postgres)
				if err != nil {
					return nil, fmt.Errorf("connecting to postgres for source %s: %w", sc.Name, err)
				}
			}
			go func() {
				n, err := source.LoadTable(ctx, db, sc.Table, src)
				if err != nil {
					log.Error("table load failed", "table", sc.Table, "error", err)
					return
				}
				log.Info("table loaded", "table", sc.Table, "items", n)
			}()
		}
	}
	return db, nil
}
