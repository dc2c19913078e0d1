package mongodb

import (
	"context"
	"time"

	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedClient wraps a Client with metrics and tracing
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient creates a new instrumented MongoDB client. m and logger may be nil.
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		database:   c.client.config.Database,
		metrics:    c.metrics,
		logger:     c.logger,
		tracer:     c.tracer,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck pings with a span
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.client.config.Database),
		),
	)
	defer span.End()

	err := c.client.HealthCheck(ctx)
	finishSpan(span, err)
	return err
}

// WithTransaction executes fn within a traced transaction
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.client.config.Database),
		),
	)
	defer span.End()

	err := c.client.WithTransaction(ctx, fn)
	finishSpan(span, err)
	return err
}

// InstrumentedCollection wraps a mongo.Collection with metrics and tracing
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// Name returns the collection name
func (c *InstrumentedCollection) Name() string {
	return c.name
}

// Indexes exposes the index view for startup index creation
func (c *InstrumentedCollection) Indexes() mongo.IndexView {
	return c.collection.Indexes()
}

func (c *InstrumentedCollection) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
}

// observe runs op inside a span and records metrics and a debug log line
func observe[T any](ctx context.Context, c *InstrumentedCollection, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, operation)
	defer span.End()

	result, err := op(ctx)
	duration := time.Since(start)

	// a miss on findOne is not a failure
	success := err == nil || err == mongo.ErrNoDocuments
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, success)
	}
	if success {
		finishSpan(span, nil)
	} else {
		finishSpan(span, err)
	}

	return result, err
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// InsertOne inserts a single document
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return observe(ctx, c, "insertOne", func(ctx context.Context) (*mongo.InsertOneResult, error) {
		return c.collection.InsertOne(ctx, document, opts...)
	})
}

// InsertMany inserts several documents
func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	return observe(ctx, c, "insertMany", func(ctx context.Context) (*mongo.InsertManyResult, error) {
		return c.collection.InsertMany(ctx, documents, opts...)
	})
}

// FindOne finds a single document and decodes it into out
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, out interface{}, opts ...*options.FindOneOptions) error {
	_, err := observe(ctx, c, "findOne", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.collection.FindOne(ctx, filter, opts...).Decode(out)
	})
	return err
}

// FindAll runs a find and decodes every document into out (a pointer to a slice)
func (c *InstrumentedCollection) FindAll(ctx context.Context, filter interface{}, out interface{}, opts ...*options.FindOptions) error {
	_, err := observe(ctx, c, "find", func(ctx context.Context) (struct{}, error) {
		cursor, err := c.collection.Find(ctx, filter, opts...)
		if err != nil {
			return struct{}{}, err
		}
		defer cursor.Close(ctx)
		return struct{}{}, cursor.All(ctx, out)
	})
	return err
}

// ReplaceOne replaces a single document
func (c *InstrumentedCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	return observe(ctx, c, "replaceOne", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return c.collection.ReplaceOne(ctx, filter, replacement, opts...)
	})
}

// UpdateOne updates a single document
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return observe(ctx, c, "updateOne", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return c.collection.UpdateOne(ctx, filter, update, opts...)
	})
}

// DeleteMany deletes matching documents
func (c *InstrumentedCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return observe(ctx, c, "deleteMany", func(ctx context.Context) (*mongo.DeleteResult, error) {
		return c.collection.DeleteMany(ctx, filter, opts...)
	})
}

// CountDocuments counts matching documents
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return observe(ctx, c, "countDocuments", func(ctx context.Context) (int64, error) {
		return c.collection.CountDocuments(ctx, filter, opts...)
	})
}
