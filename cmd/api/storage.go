package main

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure/memory"
	mongoRepo "github.com/wms-platform/production-tracking/internal/infrastructure/mongodb"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	"github.com/wms-platform/production-tracking/pkg/mongodb"
	"github.com/wms-platform/production-tracking/pkg/outbox"
	outboxMongo "github.com/wms-platform/production-tracking/pkg/outbox/mongodb"
)

const (
	storageMongo  = "mongodb"
	storageMemory = "memory"
)

// store bundles the repositories of one storage backend
type store struct {
	items       domain.WorkItemRepository
	requests    domain.WarehouseRequestRepository
	displays    domain.DisplaySessionRepository
	escalations domain.DelayEscalationRepository
	outbox      outbox.Repository
	ready       func(ctx context.Context) error
	close       func(ctx context.Context)
}

func openStore(ctx context.Context, cfg *Config, factory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) (*store, error) {
	switch cfg.Storage {
	case storageMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		ob := memory.NewOutboxRepository()
		return &store{
			items:       memory.NewWorkItemRepository(ob, factory),
			requests:    memory.NewWarehouseRequestRepository(ob, factory),
			displays:    memory.NewDisplaySessionRepository(),
			escalations: memory.NewDelayEscalationRepository(ob, factory),
			outbox:      ob,
			ready:       func(context.Context) error { return nil },
			close:       func(context.Context) {},
		}, nil

	case storageMongo:
		client, err := mongodb.NewClient(ctx, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		instrumented := mongodb.NewInstrumentedClient(client, m, logger)

		ob := outboxMongo.NewOutboxRepository(instrumented)
		items := mongoRepo.NewWorkItemRepository(instrumented, ob, factory)
		requests := mongoRepo.NewWarehouseRequestRepository(instrumented, ob, factory)
		displays := mongoRepo.NewDisplaySessionRepository(instrumented)
		escalations := mongoRepo.NewDelayEscalationRepository(instrumented, ob, factory)

		if err := mongoRepo.EnsureIndexes(ctx, items, requests, displays, escalations, ob); err != nil {
			_ = instrumented.Close(ctx)
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

		return &store{
			items:       items,
			requests:    requests,
			displays:    displays,
			escalations: escalations,
			outbox:      ob,
			ready:       instrumented.HealthCheck,
			close: func(ctx context.Context) {
				if err := instrumented.Close(ctx); err != nil {
					logger.WithError(err).Error("Failed to close MongoDB client")
				}
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown storage %q, want %s or %s", cfg.Storage, storageMongo, storageMemory)
}
