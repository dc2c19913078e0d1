package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/production-tracking/pkg/mongodb"
	outboxMongo "github.com/wms-platform/production-tracking/pkg/outbox/mongodb"
	testutil "github.com/wms-platform/production-tracking/pkg/testing"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx         context.Context
	container   *testutil.MongoDBContainer
	client      *pkgmongo.InstrumentedClient
	outbox      *outboxMongo.OutboxRepository
	items       *WorkItemRepository
	requests    *WarehouseRequestRepository
	sessions    *DisplaySessionRepository
	escalations *DelayEscalationRepository
	pipeline    *domain.Pipeline
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testutil.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	cfg := pkgmongo.DefaultConfig()
	cfg.URI = container.URI
	cfg.Database = "prodtrack_test"
	raw, err := pkgmongo.NewClient(s.ctx, cfg)
	s.Require().NoError(err)
	s.client = pkgmongo.NewInstrumentedClient(raw, nil, nil)

	factory := cloudevents.NewEventFactory(cloudevents.SourceProductionTracking)
	s.outbox = outboxMongo.NewOutboxRepository(s.client)
	s.items = NewWorkItemRepository(s.client, s.outbox, factory)
	s.requests = NewWarehouseRequestRepository(s.client, s.outbox, factory)
	s.sessions = NewDisplaySessionRepository(s.client)
	s.escalations = NewDelayEscalationRepository(s.client, s.outbox, factory)
	s.pipeline = domain.MustDefaultPipeline()

	s.Require().NoError(EnsureIndexes(s.ctx, s.outbox, s.items, s.requests, s.sessions, s.escalations))
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *RepositoryIntegrationTestSuite) TearDownTest() {
	for _, name := range []string{WorkItemsCollection, WarehouseRequestsCollection, DisplaySessionsCollection, DelayEscalationsCollection, outboxMongo.DefaultCollectionName} {
		_, _ = s.client.Database().Collection(name).DeleteMany(s.ctx, map[string]any{})
	}
}

func TestRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) newItem(code string, now time.Time) *domain.WorkItem {
	item, err := domain.NewWorkItem(s.pipeline, domain.NewWorkItemParams{ReferenceNumber: "OP-" + code, ItemCode: code, Quantity: 5}, now)
	s.Require().NoError(err)
	return item
}

func (s *RepositoryIntegrationTestSuite) TestWorkItem_CreateAndConditionalUpdate() {
	item := s.newItem("PF-1", t0)
	s.Require().NoError(s.items.Create(s.ctx, item))
	s.Equal(int64(1), item.Version)

	stale, err := s.items.FindByID(s.ctx, item.ItemID)
	s.Require().NoError(err)
	s.Equal(domain.Queued("washing"), stale.Position())

	active, _, err := item.Advance(s.pipeline, domain.AdvanceRequest{Target: domain.Active("washing"), OperatorID: "op"}, t0.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.items.Update(s.ctx, active))
	s.Equal(int64(2), active.Version)

	again, _, err := stale.Advance(s.pipeline, domain.AdvanceRequest{Target: domain.Active("washing"), OperatorID: "op2"}, t0.Add(2*time.Minute))
	s.Require().NoError(err)
	s.ErrorIs(s.items.Update(s.ctx, again), domain.ErrConflict)

	events, err := s.outbox.FindByAggregateID(s.ctx, item.ItemID)
	s.Require().NoError(err)
	s.Len(events, 2)

	_, err = s.items.FindByID(s.ctx, "WI-missing0")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositoryIntegrationTestSuite) TestWorkItem_SaveReworkDuplicateIsConflict() {
	original := s.newItem("PF-1", t0)
	s.Require().NoError(s.items.Create(s.ctx, original))
	existing := s.newItem("PF-2", t0)
	s.Require().NoError(s.items.Create(s.ctx, existing))

	closed := original.Clone()
	spawned := s.newItem("PF-1", t0.Add(time.Minute))
	spawned.ItemID = existing.ItemID

	err := s.items.SaveRework(s.ctx, closed, spawned)
	s.ErrorIs(err, domain.ErrConflict)

	stored, err := s.items.FindByID(s.ctx, original.ItemID)
	s.Require().NoError(err)
	s.Equal(int64(1), stored.Version, "the original is untouched when the rework insert fails")
}

func (s *RepositoryIntegrationTestSuite) TestWorkItem_QueriesAndSearch() {
	for i, code := range []string{"PF-1", "PF-2", "HW-3"} {
		s.Require().NoError(s.items.Create(s.ctx, s.newItem(code, t0.Add(time.Duration(i)*time.Minute))))
	}

	open, err := s.items.FindOpen(s.ctx)
	s.Require().NoError(err)
	s.Len(open, 3)

	items, total, err := s.items.Search(s.ctx, domain.HistoryQuery{ItemCode: "pf", Limit: 1})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Require().Len(items, 1)
	s.Equal("PF-2", items[0].ItemCode)

	found, err := s.items.SearchText(s.ctx, "op-hw", 10)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("HW-3", found[0].ItemCode)

	since, err := s.items.FindUpdatedSince(s.ctx, t0.Add(90*time.Second))
	s.Require().NoError(err)
	s.Len(since, 1)
}

func (s *RepositoryIntegrationTestSuite) TestDelayEscalation_UniquePerStage() {
	item := s.newItem("PF-1", t0)

	first, late := domain.EscalateIfLate(item, s.pipeline, t0.Add(61*time.Minute))
	s.Require().True(late)
	created, err := s.escalations.Record(s.ctx, first)
	s.Require().NoError(err)
	s.True(created)

	second, _ := domain.EscalateIfLate(item, s.pipeline, t0.Add(2*time.Hour))
	created, err = s.escalations.Record(s.ctx, second)
	s.Require().NoError(err)
	s.False(created)

	stored, err := s.escalations.FindByItem(s.ctx, item.ItemID)
	s.Require().NoError(err)
	s.Len(stored, 1)
}

func (s *RepositoryIntegrationTestSuite) TestWarehouseRequestAndDisplaySession() {
	req, err := domain.NewWarehouseRequest(domain.NewWarehouseRequestParams{Type: "PROFILE", ItemCode: "AL-1", Quantity: 2, Requester: "line"}, s.pipeline.Warehouse.Types, t0)
	s.Require().NoError(err)
	s.Require().NoError(s.requests.Create(s.ctx, req))

	done, err := req.Complete("store", t0.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.requests.Update(s.ctx, done))

	pending, err := s.requests.List(s.ctx, domain.WarehouseRequestFilter{Status: domain.RequestStatusPending})
	s.Require().NoError(err)
	s.Empty(pending)

	session, err := domain.NewDisplaySession("tv-1", s.pipeline, t0)
	s.Require().NoError(err)
	s.Require().NoError(s.sessions.Save(s.ctx, session))
	s.Equal(int64(1), session.Version)

	paused := session.SetRotation(false, "lead", t0.Add(time.Minute))
	s.Require().NoError(s.sessions.Save(s.ctx, paused))

	s.ErrorIs(s.sessions.Save(s.ctx, session), domain.ErrConflict)

	loaded, err := s.sessions.FindByID(s.ctx, "tv-1")
	s.Require().NoError(err)
	s.False(loaded.RotationEnabled)
	s.Equal(int64(2), loaded.Version)
}
