package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apispec "github.com/wms-platform/production-tracking/api"
	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure/memory"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/contracts/openapi"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	"github.com/wms-platform/production-tracking/pkg/middleware"
	testutil "github.com/wms-platform/production-tracking/pkg/testing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, withContract bool) *gin.Engine {
	t.Helper()
	p := domain.MustDefaultPipeline()
	now, _ := testutil.FixedClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	logger := logging.NewNop()
	m := metrics.New(metrics.DefaultConfig("test"))
	factory := cloudevents.NewEventFactory(cloudevents.SourceProductionTracking)

	ob := memory.NewOutboxRepository()
	items := memory.NewWorkItemRepository(ob, factory)
	requests := memory.NewWarehouseRequestRepository(ob, factory)
	escalations := memory.NewDelayEscalationRepository(ob, factory)

	boards := application.NewBoardService(items, requests, p, logger, application.WithClock(now))
	h := NewHandlers(
		application.NewTrackingService(items, escalations, p, nil, m, logger, application.WithClock(now)),
		boards,
		application.NewWarehouseService(requests, p, m, logger, application.WithClock(now)),
		application.NewDisplayService(memory.NewDisplaySessionRepository(), boards, p, m, logger, application.WithClock(now)),
		logger,
	)

	cfg := RouterConfig{ServiceName: "production-tracking", Logger: logger, Metrics: m}
	if withContract {
		v, err := openapi.NewValidatorFromBytes(apispec.OpenAPISpec)
		require.NoError(t, err)
		cfg.Contract = v
	}
	return NewRouter(h, cfg)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createItem(t *testing.T, router *gin.Engine, code string) application.ItemDTO {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/items", map[string]interface{}{
		"referenceNumber": "OP-" + code,
		"itemCode":        code,
		"quantity":        12,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[application.ItemDTO](t, w)
}

func advance(t *testing.T, router *gin.Engine, itemID, stage, phase string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/api/v1/items/"+itemID+"/advance", map[string]interface{}{
		"stage":      stage,
		"phase":      phase,
		"operatorId": "op-7",
	})
}

func TestCreateAndGetItem(t *testing.T) {
	router := newTestRouter(t, false)

	item := createItem(t, router, "BR-100")
	assert.Equal(t, "washing", item.Stage)
	assert.Equal(t, "QUEUED", item.Status)
	assert.Equal(t, int64(1), item.Version)

	w := doJSON(t, router, http.MethodGet, "/api/v1/items/"+item.ItemID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[application.ItemDTO](t, w)
	assert.Equal(t, item.ItemID, got.ItemID)
	assert.True(t, got.Urgency.HasDeadline)
}

func TestCreateItemValidationError(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(t, router, http.MethodPost, "/api/v1/items", map[string]interface{}{"itemCode": "BR-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[middleware.APIErrorResponse](t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Details, "referenceNumber")
	assert.Contains(t, body.Details, "quantity")
	assert.Equal(t, "/api/v1/items", body.Path)
}

func TestGetUnknownItemIsNotFound(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(t, router, http.MethodGet, "/api/v1/items/WI-missing1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdvanceSkipIsIllegalTransition(t *testing.T) {
	router := newTestRouter(t, false)
	item := createItem(t, router, "BR-200")

	w := advance(t, router, item.ItemID, "adhesive", "ACTIVE")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeIllegalTransition, decode[middleware.APIErrorResponse](t, w).Code)
}

func TestAdvanceRepeatIsNoop(t *testing.T) {
	router := newTestRouter(t, false)
	item := createItem(t, router, "BR-250")

	first := advance(t, router, item.ItemID, "washing", "ACTIVE")
	require.Equal(t, http.StatusOK, first.Code)
	assert.True(t, decode[application.AdvanceResultDTO](t, first).Changed)

	second := advance(t, router, item.ItemID, "washing", "ACTIVE")
	require.Equal(t, http.StatusOK, second.Code)
	res := decode[application.AdvanceResultDTO](t, second)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(2), res.Item.Version)
}

func TestAdvanceStaleVersionIsConflict(t *testing.T) {
	router := newTestRouter(t, false)
	item := createItem(t, router, "BR-300")
	require.Equal(t, http.StatusOK, advance(t, router, item.ItemID, "washing", "ACTIVE").Code)

	w := doJSON(t, router, http.MethodPost, "/api/v1/items/"+item.ItemID+"/advance", map[string]interface{}{
		"stage":           "adhesive",
		"phase":           "QUEUED",
		"operatorId":      "op-7",
		"expectedVersion": item.Version,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[middleware.APIErrorResponse](t, w)
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Equal(t, domain.ErrConflict.Error(), body.Message)
}

func TestGatedAdvanceRequiresInspection(t *testing.T) {
	router := newTestRouter(t, false)
	item := createItem(t, router, "BR-400")
	require.Equal(t, http.StatusOK, advance(t, router, item.ItemID, "washing", "ACTIVE").Code)
	require.Equal(t, http.StatusOK, advance(t, router, item.ItemID, "adhesive", "QUEUED").Code)

	w := advance(t, router, item.ItemID, "adhesive", "ACTIVE")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeInspectionRequired, decode[middleware.APIErrorResponse](t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/items/"+item.ItemID+"/inspections/start", map[string]interface{}{
		"stage": "adhesive", "boundary": "start", "referenceNumber": "OP-BR-400", "evaluatorCode": "EV-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/items/"+item.ItemID+"/inspections/resolve", map[string]interface{}{
		"stage": "adhesive", "boundary": "start", "outcome": "APPROVED",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusOK, advance(t, router, item.ItemID, "adhesive", "ACTIVE").Code)
}

func TestHistorySearchIsPaginated(t *testing.T) {
	router := newTestRouter(t, false)
	for _, code := range []string{"BR-1", "BR-2", "BR-3"} {
		createItem(t, router, code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/items?itemCode=br-&pageSize=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Data       []application.ItemDTO `json:"data"`
		TotalItems int64                 `json:"totalItems"`
		TotalPages int64                 `json:"totalPages"`
		HasNext    bool                  `json:"hasNext"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, int64(2), page.TotalPages)
	assert.True(t, page.HasNext)
}

func TestWarehouseRequestLifecycle(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(t, router, http.MethodPost, "/api/v1/warehouse-requests", map[string]interface{}{
		"type": "profile", "itemCode": "P-100", "quantity": 3, "requester": "ana",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[application.WarehouseRequestDTO](t, w)
	assert.Equal(t, "PROFILE", req.Type)

	w = doJSON(t, router, http.MethodGet, "/api/v1/warehouse-requests?type=PROFILE&status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]application.WarehouseRequestDTO](t, w), 1)

	path := "/api/v1/warehouse-requests/" + req.RequestID + "/complete"
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, path, map[string]string{"completedBy": "joao"}).Code)

	w = doJSON(t, router, http.MethodPost, path, map[string]string{"completedBy": "joao"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeAlreadyCompleted, decode[middleware.APIErrorResponse](t, w).Code)
}

func TestDisplayConfiguration(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(t, router, http.MethodGet, "/api/v1/displays/tv-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[application.DisplaySessionDTO](t, w).Persisted)

	w = doJSON(t, router, http.MethodPut, "/api/v1/displays/tv-1", map[string]interface{}{
		"filters": []string{"ALL", "STAGE:washing", "WAREHOUSE:PROFILE"}, "intervalSeconds": 20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[application.DisplaySessionDTO](t, w)
	assert.True(t, session.Persisted)
	assert.Equal(t, 20, session.IntervalSeconds)

	w = doJSON(t, router, http.MethodPost, "/api/v1/displays/tv-1/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[application.DisplaySessionDTO](t, w).RotationEnabled)

	w = doJSON(t, router, http.MethodGet, "/api/v1/displays/tv-1/frame?index=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	frame := decode[application.FrameDTO](t, w)
	assert.Equal(t, 1, frame.Index)
	assert.Equal(t, "STAGE:washing", frame.Filter)
}

func TestBoardRejectsUnknownFilter(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(t, router, http.MethodGet, "/api/v1/board?filter=STAGE:painting", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractValidationRejectsBadBody(t *testing.T) {
	router := newTestRouter(t, true)

	w := doJSON(t, router, http.MethodPost, "/api/v1/items", map[string]interface{}{
		"referenceNumber": "OP-1", "itemCode": "BR-1", "quantity": 0,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[middleware.APIErrorResponse](t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Details, "contract")
}

func TestContractValidationPassesGoodRequests(t *testing.T) {
	router := newTestRouter(t, true)

	item := createItem(t, router, "BR-900")
	assert.Equal(t, http.StatusOK, advance(t, router, item.ItemID, "washing", "ACTIVE").Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/v1/items/"+item.ItemID+"/delay-check", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/health", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/board", nil)
	req.Header.Set("Origin", "http://tv.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
