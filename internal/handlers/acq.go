// Package handlers exposes the acquisition supervisor over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solab/hvgagent/pkg/acq"
)

// AcqHandler serves start/stop/status for one acquisition supervisor.
type AcqHandler struct {
	Sup    *acq.Supervisor
	Params acq.Params
}

// NewRouter builds the HTTP control surface.
func NewRouter(h *AcqHandler) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", h.Health)
	r.GET("/status", h.Status)
	r.POST("/acq/start", h.Start)
	r.POST("/acq/stop", h.Stop)

	return r
}

// Health reports liveness.
func (h *AcqHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status returns the session snapshot: status plus the latest published
// fields.
func (h *AcqHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sup.Session().Snapshot())
}

// Start launches an acquisition session. The response carries a boolean
// success flag and a human-readable reason.
func (h *AcqHandler) Start(c *gin.Context) {
	err := h.Sup.Start(h.Params)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "acquisition started"})
	case errors.Is(err, acq.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": err.Error()})
	case errors.Is(err, acq.ErrNotConnected):
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": err.Error()})
	}
}

// Stop requests a cooperative stop of the running session.
func (h *AcqHandler) Stop(c *gin.Context) {
	err := h.Sup.Stop()
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "stop requested"})
	case errors.Is(err, acq.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": err.Error()})
	}
}
