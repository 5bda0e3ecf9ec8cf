package handlers

import (
	"errors"
	"net/http"

	"paletten_hub/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK          = "ok"
	statusSetpointSet = "setpoint_set"
	statusAutoSet     = "auto_set"

	errGetState        = "failed to load state"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// controlError maps a control failure to a response. Storage and dispatch
// failures do not undo the change, so they are reported as warnings.
func (h *Handler) controlError(c *gin.Context, status string, d service.Decision, err error, location string) {
	switch {
	case errors.Is(err, service.ErrUnconfiguredLocation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSetpoint):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStorage), errors.Is(err, service.ErrDispatchFailed):
		if h.log != nil {
			h.log.Warnw("control_change_degraded", "err", err, "location", location)
		}
		h.respondWithStatusAndState(c, status, gin.H{"decision": d, "warning": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "control change failed", "control_change_failed", err,
			"location", location)
	}
}

// Request DTO for changing a setpoint.
type setpointRequest struct {
	DesiredTemperature *int `json:"desired_temperature" binding:"required"`
}

// SetpointRequest is an exported model for Swagger docs of the setpoint payload.
type SetpointRequest struct {
	// Desired temperature in Celsius, -50..100
	DesiredTemperature int `json:"desired_temperature" example:"21"`
}

// Request DTO for switching automatic control.
type autoRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// AutoRequest is an exported model for Swagger docs of the auto payload.
type AutoRequest struct {
	Enabled bool `json:"enabled" example:"true"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get live control state
// @Tags         control
// @Produce      json
// @Success      200  {object}  models.HubState
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/state [get]
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "hub_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Set desired temperature
// @Description  Changes the setpoint of a location and re-evaluates its heater
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        location  path   string           true  "Location name"
// @Param        body      body   SetpointRequest  true  "Setpoint payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/locations/{location}/setpoint [put]
func (h *Handler) setSetpoint(c *gin.Context) {
	location := c.Param("location")
	var req setpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	d, err := h.services.Control.SetDesiredTemperature(c.Request.Context(), location, *req.DesiredTemperature)
	if err != nil {
		h.controlError(c, statusSetpointSet, d, err, location)
		return
	}
	h.respondWithStatusAndState(c, statusSetpointSet, gin.H{"decision": d})
}

// @Summary      Enable or disable automatic control
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        location  path   string       true  "Location name"
// @Param        body      body   AutoRequest  true  "Auto payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/locations/{location}/auto [put]
func (h *Handler) setAuto(c *gin.Context) {
	location := c.Param("location")
	var req autoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	d, err := h.services.Control.SetEnabled(c.Request.Context(), location, *req.Enabled)
	if err != nil {
		h.controlError(c, statusAutoSet, d, err, location)
		return
	}
	h.respondWithStatusAndState(c, statusAutoSet, gin.H{"decision": d})
}
