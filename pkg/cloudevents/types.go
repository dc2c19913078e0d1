package cloudevents

import (
	"time"
)

// Event types emitted by the production tracking service
const (
	ItemCreated         = "prodtrack.item.created"
	ItemStageChanged    = "prodtrack.item.stage-changed"
	ItemFinished        = "prodtrack.item.finished"
	ItemDelayEscalated  = "prodtrack.item.delay-escalated"
	ItemReworkRequested = "prodtrack.item.rework-requested"

	InspectionStarted          = "prodtrack.inspection.started"
	InspectionResolved         = "prodtrack.inspection.resolved"
	InspectionOverrideReleased = "prodtrack.inspection.override-released"

	WarehouseRequestCreated   = "prodtrack.warehouse.request-created"
	WarehouseRequestCompleted = "prodtrack.warehouse.request-completed"
)

// Sources
const (
	SourceProductionTracking = "/prodtrack/production-tracking"
)

// ProdTrackCloudEvent is a CloudEvents 1.0 envelope with the service's extensions
type ProdTrackCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"prodtrackcorrelationid,omitempty"`
	Stage         string `json:"prodtrackstage,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
	TraceState    string `json:"tracestate,omitempty"`
}
