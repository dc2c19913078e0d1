package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all production tracking metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   *prometheus.CounterVec

	// Temporal metrics
	WorkflowsStarted    *prometheus.CounterVec
	ActivitiesCompleted *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec

	// Business metrics
	ItemsCreated      *prometheus.CounterVec
	StageTransitions  *prometheus.CounterVec
	ItemsFinished     prometheus.Counter
	Inspections       *prometheus.CounterVec
	OverrideReleases  prometheus.Counter
	ReworkRequests    prometheus.Counter
	DelayEscalations  *prometheus.CounterVec
	VersionConflicts  *prometheus.CounterVec
	WarehouseRequests *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "prodtrack",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	ns := config.Namespace
	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "mongodb_operations_total", Help: "Total number of MongoDB operations"},
		[]string{"service", "collection", "operation", "status"},
	)
	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "outbox_pending_events",
			Help:        "Events waiting in the outbox",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)
	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_events_published_total", Help: "Outbox events handed to the broker"},
		[]string{"service", "event_type", "status"},
	)
	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_event_retries_total", Help: "Outbox publish retries"},
		[]string{"service", "event_type"},
	)

	m.WorkflowsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_workflows_started_total", Help: "Total number of Temporal workflows started"},
		[]string{"service", "workflow_type"},
	)
	m.ActivitiesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_activities_completed_total", Help: "Total number of Temporal activities completed"},
		[]string{"service", "activity_type", "status"},
	)
	m.ActivityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "temporal_activity_duration_seconds",
			Help:      "Temporal activity duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"service", "activity_type"},
	)

	m.ItemsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "items_created_total", Help: "Work items taken in, including rework spawns"},
		[]string{"service", "origin"},
	)
	m.StageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "stage_transitions_total", Help: "Effective stage transitions"},
		[]string{"service", "stage", "phase"},
	)
	m.ItemsFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "items_finished_total",
			Help:        "Work items that completed the pipeline",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)
	m.Inspections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "inspections_total", Help: "Inspection protocol steps"},
		[]string{"service", "stage", "step"},
	)
	m.OverrideReleases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "inspection_override_releases_total",
			Help:        "Rejected inspections released under responsibility",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)
	m.ReworkRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "rework_requests_total",
			Help:        "Rejected items sent back for rework",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)
	m.DelayEscalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "delay_escalations_total", Help: "Items escalated as late"},
		[]string{"service", "stage"},
	)
	m.VersionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "version_conflicts_total", Help: "Writes rejected because the aggregate changed"},
		[]string{"service", "aggregate"},
	)
	m.WarehouseRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "warehouse_requests_total", Help: "Warehouse request lifecycle steps"},
		[]string{"service", "type", "step"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)
	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "circuit_breaker_trips_total", Help: "Total number of circuit breaker trips"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.WorkflowsStarted,
		m.ActivitiesCompleted,
		m.ActivityDuration,
		m.ItemsCreated,
		m.StageTransitions,
		m.ItemsFinished,
		m.Inspections,
		m.OverrideReleases,
		m.ReworkRequests,
		m.DelayEscalations,
		m.VersionConflicts,
		m.WarehouseRequests,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int64) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox publish attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// RecordWorkflowStarted records a workflow start
func (m *Metrics) RecordWorkflowStarted(workflowType string) {
	m.WorkflowsStarted.WithLabelValues(m.serviceName, workflowType).Inc()
}

// RecordActivityCompleted records an activity completion
func (m *Metrics) RecordActivityCompleted(activityType string, success bool, duration time.Duration) {
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, statusLabel(success)).Inc()
	m.ActivityDuration.WithLabelValues(m.serviceName, activityType).Observe(duration.Seconds())
}

// RecordItemCreated records an intake (origin "intake") or a rework spawn (origin "rework")
func (m *Metrics) RecordItemCreated(origin string) {
	m.ItemsCreated.WithLabelValues(m.serviceName, origin).Inc()
}

// RecordStageTransition records an effective advance into stage/phase
func (m *Metrics) RecordStageTransition(stage, phase string) {
	m.StageTransitions.WithLabelValues(m.serviceName, stage, phase).Inc()
}

// RecordItemFinished records an item leaving the last stage
func (m *Metrics) RecordItemFinished() {
	m.ItemsFinished.Inc()
}

// RecordInspection records an inspection step (started, approved, rejected)
func (m *Metrics) RecordInspection(stage, step string) {
	m.Inspections.WithLabelValues(m.serviceName, stage, step).Inc()
}

// RecordOverrideRelease records an override release
func (m *Metrics) RecordOverrideRelease() {
	m.OverrideReleases.Inc()
}

// RecordRework records a rework request
func (m *Metrics) RecordRework() {
	m.ReworkRequests.Inc()
}

// RecordDelayEscalation records a delay escalation for a stage
func (m *Metrics) RecordDelayEscalation(stage string) {
	m.DelayEscalations.WithLabelValues(m.serviceName, stage).Inc()
}

// RecordVersionConflict records a rejected conditional write
func (m *Metrics) RecordVersionConflict(aggregate string) {
	m.VersionConflicts.WithLabelValues(m.serviceName, aggregate).Inc()
}

// RecordWarehouseRequest records a warehouse request step (created, completed)
func (m *Metrics) RecordWarehouseRequest(requestType, step string) {
	m.WarehouseRequests.WithLabelValues(m.serviceName, requestType, step).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
