package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/replayer/internal/domain"
	"github.com/xiaot623/gogo/replayer/internal/replay"
	"github.com/xiaot623/gogo/replayer/internal/service"
)

// OpenSession opens a playback session over a run.
// POST /v1/replay/sessions
func (h *Handler) OpenSession(c echo.Context) error {
	var req domain.OpenSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.RunID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "run_id is required"})
	}

	resp, err := h.service.OpenSession(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSession returns the current playback position.
// GET /v1/replay/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	resp, err := h.service.SessionState(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSessionData returns the replay data a session plays.
// GET /v1/replay/sessions/:session_id/data
func (h *Handler) GetSessionData(c echo.Context) error {
	data, err := h.service.SessionData(c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, data)
}

// CloseSession stops a session.
// DELETE /v1/replay/sessions/:session_id
func (h *Handler) CloseSession(c echo.Context) error {
	if err := h.service.CloseSession(c.Param("session_id")); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Play starts playback.
// POST /v1/replay/sessions/:session_id/play
func (h *Handler) Play(c echo.Context) error {
	return h.control(c, service.Command{Op: replay.OpPlay})
}

// Pause stops playback.
// POST /v1/replay/sessions/:session_id/pause
func (h *Handler) Pause(c echo.Context) error {
	return h.control(c, service.Command{Op: replay.OpPause})
}

// Reset returns to the start of the run.
// POST /v1/replay/sessions/:session_id/reset
func (h *Handler) Reset(c echo.Context) error {
	return h.control(c, service.Command{Op: replay.OpReset})
}

// StepForward moves to the next step.
// POST /v1/replay/sessions/:session_id/step_forward
func (h *Handler) StepForward(c echo.Context) error {
	return h.control(c, service.Command{Op: replay.OpStepForward})
}

// StepBackward moves to the previous step.
// POST /v1/replay/sessions/:session_id/step_backward
func (h *Handler) StepBackward(c echo.Context) error {
	return h.control(c, service.Command{Op: replay.OpStepBackward})
}

// Seek moves to an offset in the run.
// POST /v1/replay/sessions/:session_id/seek
func (h *Handler) Seek(c echo.Context) error {
	var req domain.SeekRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ElapsedMs == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "elapsed_ms is required"})
	}
	return h.control(c, service.Command{Op: replay.OpSeek, ElapsedMs: *req.ElapsedMs})
}

// Jump selects a step by index.
// POST /v1/replay/sessions/:session_id/jump
func (h *Handler) Jump(c echo.Context) error {
	var req domain.JumpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Index == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "index is required"})
	}
	return h.control(c, service.Command{Op: replay.OpJump, Index: *req.Index})
}

// SetSpeed changes the playback speed.
// POST /v1/replay/sessions/:session_id/speed
func (h *Handler) SetSpeed(c echo.Context) error {
	var req domain.SpeedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return h.control(c, service.Command{Op: replay.OpSpeed, Speed: req.Speed})
}

func (h *Handler) control(c echo.Context, cmd service.Command) error {
	resp, err := h.service.Control(c.Request().Context(), c.Param("session_id"), cmd)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
