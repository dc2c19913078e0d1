package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apispec "github.com/wms-platform/production-tracking/api"
	httpapi "github.com/wms-platform/production-tracking/internal/api/http"
	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/config"
	"github.com/wms-platform/production-tracking/internal/infrastructure/scheduler"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/contracts/openapi"
	"github.com/wms-platform/production-tracking/pkg/kafka"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	"github.com/wms-platform/production-tracking/pkg/mongodb"
	"github.com/wms-platform/production-tracking/pkg/outbox"
	"github.com/wms-platform/production-tracking/pkg/temporal"
	"github.com/wms-platform/production-tracking/pkg/tracing"
)

const serviceName = "production-tracking"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting production-tracking API")

	cfg := loadConfig()
	ctx := context.Background()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	pipeline, err := config.LoadPipelineFile(cfg.PipelinePath)
	if err != nil {
		logger.WithError(err).Error("Failed to load pipeline configuration", "path", cfg.PipelinePath)
		os.Exit(1)
	}
	logger.Info("Pipeline loaded", "stages", len(pipeline.Stages()), "path", cfg.PipelinePath)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceProductionTracking)

	store, err := openStore(ctx, cfg, eventFactory, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open storage", "storage", cfg.Storage)
		os.Exit(1)
	}
	defer store.close(context.Background())

	kafkaProducer := kafka.NewInstrumentedProducer(kafka.NewProducer(cfg.Kafka), m, logger)
	defer kafkaProducer.Close()

	outboxPublisher := outbox.NewPublisher(store.outbox, kafkaProducer, logger, m, outbox.DefaultPublisherConfig())
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)

	var deadlines application.DeadlineScheduler
	if cfg.TemporalEnabled {
		temporalClient, err := temporal.NewClient(cfg.Temporal)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Temporal")
			os.Exit(1)
		}
		defer temporalClient.Close()
		deadlines = scheduler.NewDeadlineScheduler(temporalClient, m, logger)
		logger.Info("Connected to Temporal", "namespace", cfg.Temporal.Namespace)
	} else {
		logger.Warn("Temporal disabled; delay escalation watches are not scheduled")
	}

	boards := application.NewBoardService(store.items, store.requests, pipeline, logger)
	handlers := httpapi.NewHandlers(
		application.NewTrackingService(store.items, store.escalations, pipeline, deadlines, m, logger),
		boards,
		application.NewWarehouseService(store.requests, pipeline, m, logger),
		application.NewDisplayService(store.displays, boards, pipeline, m, logger),
		logger,
	)

	routerConfig := httpapi.RouterConfig{
		ServiceName:    serviceName,
		Logger:         logger,
		Metrics:        m,
		Ready:          func() error { return store.ready(ctx) },
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.OpenAPIValidation {
		validator, err := loadContract(cfg.OpenAPISpec)
		if err != nil {
			logger.WithError(err).Error("Failed to load OpenAPI document")
			os.Exit(1)
		}
		routerConfig.Contract = validator
		logger.Info("OpenAPI request validation enabled")
	}
	router := httpapi.NewRouter(handlers, routerConfig)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr, "storage", cfg.Storage)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

func loadContract(path string) (*openapi.Validator, error) {
	if path != "" {
		return openapi.NewValidatorFromFile(path)
	}
	return openapi.NewValidatorFromBytes(apispec.OpenAPISpec)
}

// Config holds application configuration
type Config struct {
	ServerAddr        string
	Storage           string
	PipelinePath      string
	OpenAPISpec       string
	OpenAPIValidation bool
	TemporalEnabled   bool
	AllowedOrigins    []string
	MongoDB           *mongodb.Config
	Kafka             *kafka.Config
	Temporal          *temporal.Config
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))
	kafkaConfig.ClientID = serviceName

	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = getEnv("TEMPORAL_HOST", temporalConfig.HostPort)
	temporalConfig.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalConfig.Namespace)
	temporalConfig.Identity = serviceName

	return &Config{
		ServerAddr:        getEnv("SERVER_ADDR", ":8080"),
		Storage:           getEnv("STORAGE", storageMongo),
		PipelinePath:      getEnv("PIPELINE_CONFIG", ""),
		OpenAPISpec:       getEnv("OPENAPI_SPEC", ""),
		OpenAPIValidation: getEnv("OPENAPI_VALIDATION", "false") == "true",
		TemporalEnabled:   getEnv("TEMPORAL_ENABLED", "true") == "true",
		AllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MongoDB:           mongoConfig,
		Kafka:             kafkaConfig,
		Temporal:          temporalConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
