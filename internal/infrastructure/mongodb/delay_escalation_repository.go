package mongodb

import (
	"context"
	"errors"
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

var errAlreadyEscalated = errors.New("already escalated")

// DelayEscalationRepository keeps one escalation per item and stage; the
// document id is the item id and stage joined
type DelayEscalationRepository struct {
	client       *pkgmongo.InstrumentedClient
	collection   *pkgmongo.InstrumentedCollection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewDelayEscalationRepository creates a new DelayEscalationRepository
func NewDelayEscalationRepository(client *pkgmongo.InstrumentedClient, outboxRepo *outboxMongo.OutboxRepository, eventFactory *cloudevents.EventFactory) *DelayEscalationRepository {
	return &DelayEscalationRepository{
		client:       client,
		collection:   client.Collection(DelayEscalationsCollection),
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the per-item lookup index
func (r *DelayEscalationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "escalatedAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create delay escalation indexes: %w", err)
	}
	return nil
}

// Record inserts e and its event unless the item was already escalated in that stage
func (r *DelayEscalationRepository) Record(ctx context.Context, e *domain.DelayEscalation) (bool, error) {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.collection.InsertOne(sessCtx, e); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errAlreadyEscalated
			}
			return fmt.Errorf("failed to insert delay escalation: %w", err)
		}
		events, err := infrastructure.ToOutboxEvents(sessCtx, r.eventFactory, infrastructure.AggregateDelayEscalation, infrastructure.ProductionEventsTopic, e.GetDomainEvents())
		if err != nil {
			return err
		}
		return r.outboxRepo.SaveAll(sessCtx, events)
	})
	if errors.Is(err, errAlreadyEscalated) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("transaction failed: %w", err)
	}

	e.ClearDomainEvents()
	return true, nil
}

// FindByItem returns an item's escalations in the order they happened
func (r *DelayEscalationRepository) FindByItem(ctx context.Context, itemID string) ([]*domain.DelayEscalation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "escalatedAt", Value: 1}})
	out := make([]*domain.DelayEscalation, 0)
	if err := r.collection.FindAll(ctx, bson.M{"itemId": itemID}, &out, opts); err != nil {
		return nil, fmt.Errorf("failed to find delay escalations: %w", err)
	}
	return out, nil
}
