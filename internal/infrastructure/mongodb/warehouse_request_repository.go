package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/production-tracking/pkg/mongodb"
	outboxMongo "github.com/wms-platform/production-tracking/pkg/outbox/mongodb"
)

// WarehouseRequestRepository implements domain.WarehouseRequestRepository
type WarehouseRequestRepository struct {
	client       *pkgmongo.InstrumentedClient
	collection   *pkgmongo.InstrumentedCollection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewWarehouseRequestRepository creates a new WarehouseRequestRepository
func NewWarehouseRequestRepository(client *pkgmongo.InstrumentedClient, outboxRepo *outboxMongo.OutboxRepository, eventFactory *cloudevents.EventFactory) *WarehouseRequestRepository {
	return &WarehouseRequestRepository{
		client:       client,
		collection:   client.Collection(WarehouseRequestsCollection),
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the list indexes
func (r *WarehouseRequestRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "type", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create warehouse request indexes: %w", err)
	}
	return nil
}

// Create inserts a request with its events
func (r *WarehouseRequestRepository) Create(ctx context.Context, req *domain.WarehouseRequest) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		doc := *req
		doc.Version = 1
		if _, err := r.collection.InsertOne(sessCtx, &doc); err != nil {
			return fmt.Errorf("failed to insert warehouse request: %w", err)
		}
		return r.saveEvents(sessCtx, req)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	req.Version = 1
	req.ClearDomainEvents()
	return nil
}

// Update writes the request if its version is current
func (r *WarehouseRequestRepository) Update(ctx context.Context, req *domain.WarehouseRequest) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		doc := *req
		doc.Version = req.Version + 1
		if err := conditionalReplace(sessCtx, r.collection, req.RequestID, req.Version, &doc); err != nil {
			return err
		}
		return r.saveEvents(sessCtx, req)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	req.Version++
	req.ClearDomainEvents()
	return nil
}

func (r *WarehouseRequestRepository) saveEvents(ctx context.Context, req *domain.WarehouseRequest) error {
	events, err := infrastructure.ToOutboxEvents(ctx, r.eventFactory, infrastructure.AggregateWarehouseRequest, infrastructure.WarehouseEventsTopic, req.GetDomainEvents())
	if err != nil {
		return err
	}
	return r.outboxRepo.SaveAll(ctx, events)
}

// FindByID finds a request by its ID
func (r *WarehouseRequestRepository) FindByID(ctx context.Context, requestID string) (*domain.WarehouseRequest, error) {
	var req domain.WarehouseRequest
	if err := findOne(ctx, r.collection, requestID, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns matching requests, oldest first
func (r *WarehouseRequestRepository) List(ctx context.Context, filter domain.WarehouseRequestFilter) ([]*domain.WarehouseRequest, error) {
	q := bson.M{}
	if filter.Type != "" {
		q["type"] = filter.Type
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	requests := make([]*domain.WarehouseRequest, 0)
	if err := r.collection.FindAll(ctx, q, &requests, opts); err != nil {
		return nil, fmt.Errorf("failed to list warehouse requests: %w", err)
	}
	return requests, nil
}
