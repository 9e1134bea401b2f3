package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/logger"
	"igsaved/pkg/models"
)

// Runner performs scrape runs
type Runner interface {
	Run(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResponse, error)
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// ErrorResponse wraps ErrorBody under "error"
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Handler serves the API routes
type Handler struct {
	runner  Runner
	version string
	logger  logger.Logger
}

// NewHandler creates a Handler
func NewHandler(runner Runner, version string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{runner: runner, version: version, logger: log}
}

// Scrape handles POST /scrape. The run is bound to the request: a client
// that disconnects cancels it.
func (h *Handler) Scrape(c *gin.Context) {
	var req models.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Type:    string(igerrors.ErrorTypeValidation),
			Message: "malformed request body: " + err.Error(),
		}})
		return
	}

	resp, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: serviceName,
		Version: h.version,
	})
}

// statusFor maps a run error onto an HTTP status
func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch igerrors.TypeOf(err) {
	case igerrors.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case igerrors.ErrorTypeAuthBootstrap:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) ErrorResponse {
	t := string(igerrors.TypeOf(err))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		t = "cancelled"
	}
	return ErrorResponse{Error: ErrorBody{
		Type:    t,
		Message: err.Error(),
		Trace:   igerrors.TraceOf(err),
	}}
}
