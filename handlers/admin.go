package handlers

import (
	"net/http"

	"rivelya/services/reconcile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	Loop *reconcile.Loop
}

// ReconcileHandler runs one reconciliation pass on demand and returns its report.
func (h *AdminHandler) ReconcileHandler(c *gin.Context) {
	report := h.Loop.RunOnce(c.Request.Context())
	getLogger(c).Info("manual reconcile pass",
		zap.Int("processed", report.Changed()), zap.Int("failed", report.Failed()))
	c.JSON(http.StatusOK, report)
}
