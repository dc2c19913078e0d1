package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/pkg/resilience"
)

func TestDoRequest_PropagatesTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	var captured http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Dashboard(ctx)
	require.NoError(t, err)

	traceID := span.SpanContext().TraceID().String()
	assert.Contains(t, captured.Get("traceparent"), traceID, "traceparent should contain trace ID")
}

func TestDelayCheckSendsStage(t *testing.T) {
	var gotPath string
	var gotBody application.DelayCheckCommand
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(application.DelayCheckDTO{ItemID: "WI-1", Stage: "washing", Open: true, Escalated: true})
	}))
	defer server.Close()

	result, err := New(server.URL).DelayCheck(context.Background(), "WI-1", "washing")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/items/WI-1/delay-check", gotPath)
	assert.Equal(t, "washing", gotBody.Stage)
	assert.True(t, result.Escalated)
}

func TestErrorResponseIsDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"NOT_FOUND","message":"display not found","requestId":"r-1"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Display(context.Background(), "tv-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "display not found", apiErr.Message)
	assert.True(t, IsNotFound(err))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"CONFLICT","message":"version mismatch"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	for i := 0; i < 10; i++ {
		_, err := c.Dashboard(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	assert.Equal(t, int32(10), atomic.LoadInt32(&hits))
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := New(server.URL)
	for i := 0; i < int(resilience.DefaultFailureThreshold); i++ {
		_, err := c.Dashboard(context.Background())
		require.Error(t, err)
	}

	_, err := c.Dashboard(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(resilience.DefaultFailureThreshold), atomic.LoadInt32(&hits))
}

func TestFrameForWarehouseFilterListsPendingRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/board", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WAREHOUSE:PROFILE", r.URL.Query().Get("filter"))
		w.Write([]byte(`{"filter":"WAREHOUSE:PROFILE","buckets":[]}`))
	})
	mux.HandleFunc("/api/v1/warehouse-requests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROFILE", r.URL.Query().Get("type"))
		assert.Equal(t, "PENDING", r.URL.Query().Get("status"))
		json.NewEncoder(w).Encode([]application.WarehouseRequestDTO{
			{RequestID: "WR-1", Type: "PROFILE", ItemCode: "P-100", Quantity: 4, Status: "PENDING"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	frame, err := New(server.URL).Frame(context.Background(), "WAREHOUSE:PROFILE")
	require.NoError(t, err)
	require.Len(t, frame.Requests, 1)
	assert.Equal(t, "WR-1", frame.Requests[0].Request.RequestID)
	assert.Equal(t, domain.RequestStatusPending, frame.Requests[0].Request.Status)
}

func TestFrameForStageFilterSkipsRequests(t *testing.T) {
	var requestsCalled bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/board", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"filter":"STAGE:washing","buckets":[{"name":"washing.queued","entries":[]}]}`))
	})
	mux.HandleFunc("/api/v1/warehouse-requests", func(w http.ResponseWriter, r *http.Request) {
		requestsCalled = true
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	frame, err := New(server.URL).Frame(context.Background(), "STAGE:washing")
	require.NoError(t, err)
	assert.Equal(t, "STAGE:washing", frame.Filter)
	assert.Empty(t, frame.Requests)
	assert.False(t, requestsCalled)
}
