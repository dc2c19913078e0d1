package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/production-tracking/internal/domain"
	pkgmongo "github.com/wms-platform/production-tracking/pkg/mongodb"
)

// Collection names
const (
	WorkItemsCollection         = "work_items"
	WarehouseRequestsCollection = "warehouse_requests"
	DisplaySessionsCollection   = "display_sessions"
	DelayEscalationsCollection  = "delay_escalations"
)

// indexer is implemented by every repository in this package
type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of all repositories and the outbox
func EnsureIndexes(ctx context.Context, repos ...indexer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, r := range repos {
		if err := r.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// conditionalReplace replaces the document with id if it is still at version.
// It tells a missing document apart from a stale one.
func conditionalReplace(ctx context.Context, coll *pkgmongo.InstrumentedCollection, id string, version int64, doc interface{}) error {
	result, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		return fmt.Errorf("failed to replace %s %s: %w", coll.Name(), id, err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", coll.Name(), id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, coll.Name(), id)
	}
	return fmt.Errorf("%w: %s %s changed since version %d", domain.ErrConflict, coll.Name(), id, version)
}

func findOne(ctx context.Context, coll *pkgmongo.InstrumentedCollection, id string, out interface{}) error {
	err := coll.FindOne(ctx, bson.M{"_id": id}, out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, coll.Name(), id)
	}
	if err != nil {
		return fmt.Errorf("failed to find %s %s: %w", coll.Name(), id, err)
	}
	return nil
}

// contains matches a case-insensitive substring
func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
