package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/production-tracking/internal/domain"
	pkgmongo "github.com/wms-platform/production-tracking/pkg/mongodb"
)

// DisplaySessionRepository implements domain.DisplaySessionRepository
type DisplaySessionRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewDisplaySessionRepository creates a new DisplaySessionRepository
func NewDisplaySessionRepository(client *pkgmongo.InstrumentedClient) *DisplaySessionRepository {
	return &DisplaySessionRepository{collection: client.Collection(DisplaySessionsCollection)}
}

// EnsureIndexes is a no-op; sessions are only read by id
func (r *DisplaySessionRepository) EnsureIndexes(context.Context) error { return nil }

// FindByID returns ErrNotFound for sessions never saved
func (r *DisplaySessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.DisplaySession, error) {
	var s domain.DisplaySession
	if err := findOne(ctx, r.collection, sessionID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save inserts a new session or conditionally replaces an existing one
func (r *DisplaySessionRepository) Save(ctx context.Context, s *domain.DisplaySession) error {
	doc := *s
	doc.Version = s.Version + 1

	if s.Version == 0 {
		if _, err := r.collection.InsertOne(ctx, &doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: display session %s already exists", domain.ErrConflict, s.SessionID)
			}
			return fmt.Errorf("failed to insert display session: %w", err)
		}
	} else if err := conditionalReplace(ctx, r.collection, s.SessionID, s.Version, &doc); err != nil {
		return err
	}

	s.Version = doc.Version
	return nil
}
