package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/markahope-aag/labelcheck-sub001/internal/audit"
	"github.com/markahope-aag/labelcheck-sub001/internal/compliance"
	"github.com/markahope-aag/labelcheck-sub001/internal/compliance/handler"
	"github.com/markahope-aag/labelcheck-sub001/internal/compliance/reportcache"
	"github.com/markahope-aag/labelcheck-sub001/internal/match"
	vocabcache "github.com/markahope-aag/labelcheck-sub001/internal/vocab/cache"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/store"
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
	"github.com/markahope-aag/labelcheck-sub001/pkg/health"
	"github.com/markahope-aag/labelcheck-sub001/pkg/kafka"
	"github.com/markahope-aag/labelcheck-sub001/pkg/logger"
	"github.com/markahope-aag/labelcheck-sub001/pkg/metrics"
	"github.com/markahope-aag/labelcheck-sub001/pkg/middleware"
	"github.com/markahope-aag/labelcheck-sub001/pkg/postgres"
	pkgredis "github.com/markahope-aag/labelcheck-sub001/pkg/redis"
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
	slog.Info("starting labelcheck service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to reference store", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()
	refStore := store.NewPostgres(pgClient)
	slog.Info("reference store connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	var reportCache *reportcache.ReportCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		reportCache = reportcache.New(redisClient, cfg.Redis, m)
		slog.Info("report cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.ReportTTL)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ComplianceEvents)
	defer producer.Close()
	collector := audit.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("audit collector started", "topic", cfg.Kafka.Topics.ComplianceEvents)

	snapshots := vocabcache.New(refStore, cfg.Vocabulary,
		vocabcache.WithMetrics(m),
		vocabcache.WithTracker(collector),
	)
	matcher := match.New()
	aggregator := compliance.NewAggregator(snapshots, matcher,
		compliance.WithMetrics(m),
		compliance.WithTracker(collector),
	)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(aggregator, snapshots, reportCache)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/check/gras", h.CheckGRAS)
	mux.HandleFunc("POST /api/v1/check/ndi-odi", h.CheckNDIODI)
	mux.HandleFunc("POST /api/v1/check/allergens", h.CheckAllergens)
	mux.HandleFunc("POST /api/v1/vocabularies/invalidate", h.InvalidateAll)
	mux.HandleFunc("POST /api/v1/vocabularies/{id}/invalidate", h.Invalidate)
	mux.HandleFunc("GET /api/v1/vocabularies/{id}/stats", h.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

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
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("labelcheck service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("labelcheck service stopped")
}
