package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/production-tracking/internal/activities"
	"github.com/wms-platform/production-tracking/internal/client"
	"github.com/wms-platform/production-tracking/internal/workflows"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	"github.com/wms-platform/production-tracking/pkg/resilience"
	"github.com/wms-platform/production-tracking/pkg/temporal"
	"github.com/wms-platform/production-tracking/pkg/tracing"
)

const serviceName = "production-tracking-worker"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting deadline worker")

	cfg := loadConfig()
	ctx := context.Background()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"
	if tp, err := tracing.Initialize(ctx, tracingConfig); err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, m.Handler()); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	temporalClient, err := temporal.NewClient(cfg.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort, "namespace", cfg.Temporal.Namespace)

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("prodtrack-api"), logger.Logger, m)
	api := client.New(cfg.APIURL, client.WithCircuitBreaker(breaker))

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.ProductionTracking))
	w.RegisterWorkflowWithOptions(workflows.DeadlineWatchWorkflow, workflow.RegisterOptions{
		Name: temporal.WorkflowNames.DeadlineWatch,
	})
	w.RegisterActivity(activities.NewDelayActivities(api, m))

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Failed to start worker")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.ProductionTracking, "api", cfg.APIURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}

// Config holds worker configuration
type Config struct {
	Temporal    *temporal.Config
	APIURL      string
	MetricsAddr string
}

func loadConfig() *Config {
	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = getEnv("TEMPORAL_HOST", temporalConfig.HostPort)
	temporalConfig.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalConfig.Namespace)
	temporalConfig.Identity = serviceName

	return &Config{
		Temporal:    temporalConfig,
		APIURL:      getEnv("PRODTRACK_API", "http://localhost:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9091"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
