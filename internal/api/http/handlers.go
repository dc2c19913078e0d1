package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/config"
	"github.com/wms-platform/production-tracking/pkg/errors"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/middleware"
)

// Handlers holds the HTTP handlers of the tracking API
type Handlers struct {
	tracking  *application.TrackingService
	boards    *application.BoardService
	warehouse *application.WarehouseService
	displays  *application.DisplayService
	logger    *logging.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	tracking *application.TrackingService,
	boards *application.BoardService,
	warehouse *application.WarehouseService,
	displays *application.DisplayService,
	logger *logging.Logger,
) *Handlers {
	return &Handlers{
		tracking:  tracking,
		boards:    boards,
		warehouse: warehouse,
		displays:  displays,
		logger:    logger.WithComponent("http"),
	}
}

func bind(c *gin.Context, obj interface{}) bool {
	if appErr := middleware.BindAndValidate(c, obj); appErr != nil {
		_ = c.Error(appErr)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj interface{}) bool {
	if appErr := middleware.BindQueryAndValidate(c, obj); appErr != nil {
		_ = c.Error(appErr)
		return false
	}
	return true
}

// GetPipeline handles GET /api/v1/pipeline
func (h *Handlers) GetPipeline(c *gin.Context) {
	c.JSON(http.StatusOK, config.FromPipeline(h.tracking.Pipeline()))
}

// CreateItem handles POST /api/v1/items
func (h *Handlers) CreateItem(c *gin.Context) {
	var cmd application.CreateItemCommand
	if !bind(c, &cmd) {
		return
	}

	item, err := h.tracking.CreateItem(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// SearchHistory handles GET /api/v1/items
func (h *Handlers) SearchHistory(c *gin.Context) {
	var q application.HistoryQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.tracking.SearchHistory(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchText handles GET /api/v1/items/search?q=
func (h *Handlers) SearchText(c *gin.Context) {
	items, err := h.tracking.SearchText(c.Request.Context(), c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetItem handles GET /api/v1/items/:itemId
func (h *Handlers) GetItem(c *gin.Context) {
	item, err := h.tracking.GetItem(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AdvanceItem handles POST /api/v1/items/:itemId/advance
func (h *Handlers) AdvanceItem(c *gin.Context) {
	var cmd application.AdvanceItemCommand
	if !bind(c, &cmd) {
		return
	}
	cmd.ItemID = c.Param("itemId")

	result, err := h.tracking.Advance(logging.ContextWithOperatorID(c.Request.Context(), cmd.OperatorID), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StartInspection handles POST /api/v1/items/:itemId/inspections/start
func (h *Handlers) StartInspection(c *gin.Context) {
	var cmd application.StartInspectionCommand
	if !bind(c, &cmd) {
		return
	}
	cmd.ItemID = c.Param("itemId")

	result, err := h.tracking.StartInspection(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResolveInspection handles POST /api/v1/items/:itemId/inspections/resolve
func (h *Handlers) ResolveInspection(c *gin.Context) {
	var cmd application.ResolveInspectionCommand
	if !bind(c, &cmd) {
		return
	}
	cmd.ItemID = c.Param("itemId")

	result, err := h.tracking.ResolveInspection(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DecideRejection handles POST /api/v1/items/:itemId/inspections/decision
func (h *Handlers) DecideRejection(c *gin.Context) {
	var cmd application.DecideRejectionCommand
	if !bind(c, &cmd) {
		return
	}
	cmd.ItemID = c.Param("itemId")

	result, err := h.tracking.DecideRejection(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DelayCheck handles POST /api/v1/items/:itemId/delay-check
func (h *Handlers) DelayCheck(c *gin.Context) {
	var cmd application.DelayCheckCommand
	if c.Request.ContentLength > 0 && !bind(c, &cmd) {
		return
	}
	cmd.ItemID = c.Param("itemId")

	result, err := h.tracking.EscalateDelay(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBoard handles GET /api/v1/board
func (h *Handlers) GetBoard(c *gin.Context) {
	var q application.BoardQuery
	if !bindQuery(c, &q) {
		return
	}

	board, err := h.boards.Board(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// GetDashboard handles GET /api/v1/dashboard
func (h *Handlers) GetDashboard(c *gin.Context) {
	dashboard, err := h.boards.Dashboard(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// CreateWarehouseRequest handles POST /api/v1/warehouse-requests
func (h *Handlers) CreateWarehouseRequest(c *gin.Context) {
	var cmd application.CreateWarehouseRequestCommand
	if !bind(c, &cmd) {
		return
	}

	req, err := h.warehouse.Create(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListWarehouseRequests handles GET /api/v1/warehouse-requests
func (h *Handlers) ListWarehouseRequests(c *gin.Context) {
	var q application.ListWarehouseRequestsQuery
	if !bindQuery(c, &q) {
		return
	}

	list, err := h.warehouse.List(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CompleteWarehouseRequest handles POST /api/v1/warehouse-requests/:requestId/complete
func (h *Handlers) CompleteWarehouseRequest(c *gin.Context) {
	var cmd application.CompleteWarehouseRequestCommand
	if !bind(c, &cmd) {
		return
	}
	cmd.RequestID = c.Param("requestId")

	req, err := h.warehouse.Complete(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GetDisplay handles GET /api/v1/displays/:sessionId
func (h *Handlers) GetDisplay(c *gin.Context) {
	session, err := h.displays.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ConfigureDisplay handles PUT /api/v1/displays/:sessionId
func (h *Handlers) ConfigureDisplay(c *gin.Context) {
	var cmd application.ConfigureDisplayCommand
	if !bind(c, &cmd) {
		return
	}
	cmd.SessionID = c.Param("sessionId")

	session, err := h.displays.Configure(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// PauseDisplay handles POST /api/v1/displays/:sessionId/pause
func (h *Handlers) PauseDisplay(c *gin.Context) {
	h.setRotation(c, false)
}

// ResumeDisplay handles POST /api/v1/displays/:sessionId/resume
func (h *Handlers) ResumeDisplay(c *gin.Context) {
	h.setRotation(c, true)
}

func (h *Handlers) setRotation(c *gin.Context, enabled bool) {
	var cmd application.SetRotationCommand
	if c.Request.ContentLength > 0 && !bind(c, &cmd) {
		return
	}
	cmd.SessionID = c.Param("sessionId")
	cmd.Enabled = enabled

	session, err := h.displays.SetRotation(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetDisplayFrame handles GET /api/v1/displays/:sessionId/frame?index=
func (h *Handlers) GetDisplayFrame(c *gin.Context) {
	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil {
		_ = c.Error(errors.ErrBadRequest("index must be an integer"))
		return
	}

	frame, err := h.displays.Frame(c.Request.Context(), c.Param("sessionId"), index)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, frame)
}
