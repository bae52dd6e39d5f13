package handler

import (
	alertapp "github.com/benedict431app/PharmacyOS/internal/application/alert"
	"github.com/gin-gonic/gin"
)

// AlertHandler exposes stock and expiry alerts
type AlertHandler struct {
	BaseHandler
	alertService *alertapp.AlertService
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alertService *alertapp.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// ListAlerts evaluates current alerts. ?kind= and ?severity= narrow the list;
// counts always cover every alert.
//
// GET /alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var filter alertapp.AlertFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	resp, err := h.alertService.Evaluate(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Sweep marks past-expiry batches as expired now instead of waiting for the
// scheduled sweep
//
// POST /alerts/sweep
func (h *AlertHandler) Sweep(c *gin.Context) {
	stats, err := h.alertService.SweepExpired(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
