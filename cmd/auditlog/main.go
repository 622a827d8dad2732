// Command auditlog consumes the engine's compliance events from Kafka and
// serves aggregated counters for operational inspection.
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
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
	"github.com/markahope-aag/labelcheck-sub001/pkg/health"
	"github.com/markahope-aag/labelcheck-sub001/pkg/kafka"
	"github.com/markahope-aag/labelcheck-sub001/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8083, "stats HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting auditlog service", "port", *port, "topic", cfg.Kafka.Topics.ComplianceEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := audit.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ComplianceEvents, aggregator.Handle)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/audit/stats", aggregator.StatsHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("auditlog service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("auditlog service stopped")
}
