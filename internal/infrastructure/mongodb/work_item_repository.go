package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/production-tracking/pkg/mongodb"
	outboxMongo "github.com/wms-platform/production-tracking/pkg/outbox/mongodb"
)

// WorkItemRepository stores work items and writes their events to the
// outbox in the same transaction
type WorkItemRepository struct {
	client       *pkgmongo.InstrumentedClient
	collection   *pkgmongo.InstrumentedCollection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewWorkItemRepository creates a new WorkItemRepository
func NewWorkItemRepository(client *pkgmongo.InstrumentedClient, outboxRepo *outboxMongo.OutboxRepository, eventFactory *cloudevents.EventFactory) *WorkItemRepository {
	return &WorkItemRepository{
		client:       client,
		collection:   client.Collection(WorkItemsCollection),
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the board, history and finished-list indexes
func (r *WorkItemRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "stage", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "finishedAt", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "referenceNumber", Value: 1}}},
		{Keys: bson.D{{Key: "itemCode", Value: 1}}},
		{Keys: bson.D{{Key: "reworkOf", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create work item indexes: %w", err)
	}
	return nil
}

// Create inserts a new item with its events
func (r *WorkItemRepository) Create(ctx context.Context, item *domain.WorkItem) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.insert(sessCtx, item); err != nil {
			return err
		}
		return r.saveEvents(sessCtx, item)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	item.Version = 1
	item.ClearDomainEvents()
	return nil
}

// Update writes the item if nobody changed it since it was read
func (r *WorkItemRepository) Update(ctx context.Context, item *domain.WorkItem) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.replace(sessCtx, item); err != nil {
			return err
		}
		return r.saveEvents(sessCtx, item)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	item.Version++
	item.ClearDomainEvents()
	return nil
}

// SaveRework closes the original and inserts the rework item atomically
func (r *WorkItemRepository) SaveRework(ctx context.Context, closed *domain.WorkItem, spawned *domain.WorkItem) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.replace(sessCtx, closed); err != nil {
			return err
		}
		if err := r.insert(sessCtx, spawned); err != nil {
			return err
		}
		if err := r.saveEvents(sessCtx, closed); err != nil {
			return err
		}
		return r.saveEvents(sessCtx, spawned)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	closed.Version++
	spawned.Version = 1
	closed.ClearDomainEvents()
	spawned.ClearDomainEvents()
	return nil
}

func (r *WorkItemRepository) insert(ctx context.Context, item *domain.WorkItem) error {
	doc := item.Clone()
	doc.Version = 1
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: item %s already exists", domain.ErrConflict, item.ItemID)
		}
		return fmt.Errorf("failed to insert work item: %w", err)
	}
	return nil
}

func (r *WorkItemRepository) replace(ctx context.Context, item *domain.WorkItem) error {
	doc := item.Clone()
	doc.Version = item.Version + 1
	return conditionalReplace(ctx, r.collection, item.ItemID, item.Version, doc)
}

func (r *WorkItemRepository) saveEvents(ctx context.Context, item *domain.WorkItem) error {
	events, err := infrastructure.ToOutboxEvents(ctx, r.eventFactory, infrastructure.AggregateWorkItem, infrastructure.ProductionEventsTopic, item.GetDomainEvents())
	if err != nil {
		return err
	}
	return r.outboxRepo.SaveAll(ctx, events)
}

// FindByID finds an item by its item ID
func (r *WorkItemRepository) FindByID(ctx context.Context, itemID string) (*domain.WorkItem, error) {
	var item domain.WorkItem
	if err := findOne(ctx, r.collection, itemID, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindOpen finds all queued and active items
func (r *WorkItemRepository) FindOpen(ctx context.Context) ([]*domain.WorkItem, error) {
	return r.find(ctx, bson.M{"status": bson.M{"$in": bson.A{domain.ItemStatusQueued, domain.ItemStatusActive}}})
}

// FindRecentlyFinished finds the latest finished items
func (r *WorkItemRepository) FindRecentlyFinished(ctx context.Context, limit int) ([]*domain.WorkItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "finishedAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{"status": domain.ItemStatusFinished}, opts)
}

// FindUpdatedSince finds items touched at or after since
func (r *WorkItemRepository) FindUpdatedSince(ctx context.Context, since time.Time) ([]*domain.WorkItem, error) {
	return r.find(ctx, bson.M{"updatedAt": bson.M{"$gte": since}})
}

// Search runs the paginated history query, newest first
func (r *WorkItemRepository) Search(ctx context.Context, q domain.HistoryQuery) ([]*domain.WorkItem, int64, error) {
	filter := bson.M{}
	if q.ReferenceNumber != "" {
		filter["referenceNumber"] = contains(q.ReferenceNumber)
	}
	if q.ItemCode != "" {
		filter["itemCode"] = contains(q.ItemCode)
	}
	if q.Stage != "" {
		filter["stage"] = strings.ToLower(q.Stage)
	}
	created := bson.M{}
	if q.From != nil {
		created["$gte"] = *q.From
	}
	if q.To != nil {
		created["$lte"] = *q.To
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count work items: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(q.Offset)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	items, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SearchText matches item code, reference and description
func (r *WorkItemRepository) SearchText(ctx context.Context, text string, limit int) ([]*domain.WorkItem, error) {
	re := contains(strings.TrimSpace(text))
	filter := bson.M{"$or": bson.A{
		bson.M{"itemCode": re},
		bson.M{"referenceNumber": re},
		bson.M{"description": re},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *WorkItemRepository) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]*domain.WorkItem, error) {
	items := make([]*domain.WorkItem, 0)
	if err := r.collection.FindAll(ctx, filter, &items, opts...); err != nil {
		return nil, fmt.Errorf("failed to find work items: %w", err)
	}
	return items, nil
}
