// Package v1 provides the HTTP handlers for the replay API.
package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/replayer/internal/replay"
	"github.com/xiaot623/gogo/replayer/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the v1 routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Recording API
	e.POST("/v1/runs", h.CreateRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.POST("/v1/runs/:run_id/events", h.AppendEvents)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.POST("/v1/runs/:run_id/complete", h.CompleteRun)
	e.GET("/v1/runs/:run_id/replay", h.GetReplayData)

	// Playback API
	e.POST("/v1/replay/sessions", h.OpenSession)
	e.GET("/v1/replay/sessions/:session_id", h.GetSession)
	e.DELETE("/v1/replay/sessions/:session_id", h.CloseSession)
	e.GET("/v1/replay/sessions/:session_id/data", h.GetSessionData)
	e.POST("/v1/replay/sessions/:session_id/play", h.Play)
	e.POST("/v1/replay/sessions/:session_id/pause", h.Pause)
	e.POST("/v1/replay/sessions/:session_id/reset", h.Reset)
	e.POST("/v1/replay/sessions/:session_id/step_forward", h.StepForward)
	e.POST("/v1/replay/sessions/:session_id/step_backward", h.StepBackward)
	e.POST("/v1/replay/sessions/:session_id/seek", h.Seek)
	e.POST("/v1/replay/sessions/:session_id/jump", h.Jump)
	e.POST("/v1/replay/sessions/:session_id/speed", h.SetSpeed)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"version":  "0.1.0",
		"sessions": h.service.Sessions().Len(),
	})
}

// errorStatus maps service and playback errors to HTTP status codes.
func errorStatus(err error) int {
	var rangeErr *replay.OutOfRangeError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, replay.ErrInvalidSpeed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRunNotFound), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunExists), errors.Is(err, service.ErrRunCompleted), errors.Is(err, replay.ErrClosed):
		return http.StatusConflict
	case errors.As(err, &rangeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrTraceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
}
