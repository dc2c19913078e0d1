package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/config"
	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/pkg/resilience"
)

// APIError is an error response from the API
type APIError struct {
	Status    int               `json:"-"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the production tracking HTTP API. Server errors and transport
// failures count against the circuit breaker; 4xx answers do not.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the traced default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCircuitBreaker replaces the default breaker
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New creates a client for the API at baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("prodtrack-api"), nil, nil)
	}
	return c
}

// doRequest performs an HTTP request and decodes the response
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	apiErr, err := resilience.Execute(ctx, c.breaker, func(ctx context.Context) (*APIError, error) {
		return c.send(ctx, method, path, payload, result)
	})
	if err != nil {
		return err
	}
	if apiErr != nil {
		return apiErr
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, result interface{}) (*APIError, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = string(respBody)
		}
		return apiErr, nil
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil, nil
}

// Pipeline fetches the active pipeline and builds it locally
func (c *Client) Pipeline(ctx context.Context) (*domain.Pipeline, error) {
	var cfg config.PipelineConfig
	if err := c.doRequest(ctx, http.MethodGet, "/pipeline", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg.Build()
}

// DelayCheck asks the API to escalate an item if it is late in stage
func (c *Client) DelayCheck(ctx context.Context, itemID, stage string) (*application.DelayCheckDTO, error) {
	var result application.DelayCheckDTO
	path := "/items/" + url.PathEscape(itemID) + "/delay-check"
	if err := c.doRequest(ctx, http.MethodPost, path, application.DelayCheckCommand{Stage: stage}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Board fetches the projected board for a filter
func (c *Client) Board(ctx context.Context, filter string, includeFinished bool) (*projection.Board, error) {
	q := url.Values{}
	q.Set("filter", filter)
	q.Set("includeFinished", strconv.FormatBool(includeFinished))

	var board projection.Board
	if err := c.doRequest(ctx, http.MethodGet, "/board?"+q.Encode(), nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// Dashboard fetches the production day KPIs
func (c *Client) Dashboard(ctx context.Context) (*projection.Dashboard, error) {
	var d projection.Dashboard
	if err := c.doRequest(ctx, http.MethodGet, "/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PendingRequests lists pending warehouse requests of one type, oldest first
func (c *Client) PendingRequests(ctx context.Context, requestType string) ([]application.WarehouseRequestDTO, error) {
	q := url.Values{}
	q.Set("type", requestType)
	q.Set("status", string(domain.RequestStatusPending))
	q.Set("order", "oldest")

	var out []application.WarehouseRequestDTO
	if err := c.doRequest(ctx, http.MethodGet, "/warehouse-requests?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Frame assembles what a display shows for one filter from the board and
// warehouse endpoints
func (c *Client) Frame(ctx context.Context, filter string) (*projection.Frame, error) {
	board, err := c.Board(ctx, filter, false)
	if err != nil {
		return nil, err
	}
	frame := &projection.Frame{Filter: board.Filter, Board: *board}

	kind, value, _ := strings.Cut(board.Filter, ":")
	if domain.FilterKind(kind) != domain.FilterKindWarehouse {
		return frame, nil
	}

	requests, err := c.PendingRequests(ctx, value)
	if err != nil {
		return nil, err
	}
	frame.Requests = make([]projection.RequestEntry, 0, len(requests))
	for _, r := range requests {
		frame.Requests = append(frame.Requests, projection.RequestEntry{
			Request: &domain.WarehouseRequest{
				RequestID:   r.RequestID,
				Type:        r.Type,
				ItemCode:    r.ItemCode,
				Quantity:    r.Quantity,
				Requester:   r.Requester,
				Status:      domain.RequestStatus(r.Status),
				CreatedAt:   r.CreatedAt,
				CompletedAt: r.CompletedAt,
				CompletedBy: r.CompletedBy,
				Version:     r.Version,
			},
			Urgency: r.Urgency,
		})
	}
	return frame, nil
}

// Display fetches a display session, defaults included
func (c *Client) Display(ctx context.Context, sessionID string) (*application.DisplaySessionDTO, error) {
	var out application.DisplaySessionDTO
	if err := c.doRequest(ctx, http.MethodGet, "/displays/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfigureDisplay replaces a display's filters and interval
func (c *Client) ConfigureDisplay(ctx context.Context, cmd application.ConfigureDisplayCommand) (*application.DisplaySessionDTO, error) {
	var out application.DisplaySessionDTO
	if err := c.doRequest(ctx, http.MethodPut, "/displays/"+url.PathEscape(cmd.SessionID), cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetRotation pauses or resumes a display
func (c *Client) SetRotation(ctx context.Context, sessionID string, enabled bool, updatedBy string) (*application.DisplaySessionDTO, error) {
	action := "/pause"
	if enabled {
		action = "/resume"
	}
	body := struct {
		UpdatedBy string `json:"updatedBy,omitempty"`
	}{updatedBy}

	var out application.DisplaySessionDTO
	if err := c.doRequest(ctx, http.MethodPost, "/displays/"+url.PathEscape(sessionID)+action, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisplayFrame fetches the server-assembled frame at index for a display
func (c *Client) DisplayFrame(ctx context.Context, sessionID string, index int) (*application.FrameDTO, error) {
	q := url.Values{}
	q.Set("index", strconv.Itoa(index))

	var out application.FrameDTO
	path := "/displays/" + url.PathEscape(sessionID) + "/frame?" + q.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
