package handler

import (
	reportapp "github.com/benedict431app/PharmacyOS/internal/application/report"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves the dashboard and sales reports
type ReportHandler struct {
	BaseHandler
	reportService *reportapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *reportapp.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Dashboard returns today's pharmacy overview
//
// GET /reports/dashboard
func (h *ReportHandler) Dashboard(c *gin.Context) {
	stats, err := h.reportService.DashboardStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// TopSelling ranks drugs by units sold
//
// GET /reports/top-selling?days=&limit=
func (h *ReportHandler) TopSelling(c *gin.Context) {
	var filter reportapp.TopSellingFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	rows, err := h.reportService.TopSellingDrugs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Revenue totals sales over the trailing period
//
// GET /reports/revenue?days=
func (h *ReportHandler) Revenue(c *gin.Context) {
	var filter reportapp.PeriodFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	summary, err := h.reportService.RevenueSummary(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// SalesTrend returns daily revenue over the trailing period
//
// GET /reports/sales-trend?days=
func (h *ReportHandler) SalesTrend(c *gin.Context) {
	var filter reportapp.PeriodFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	points, err := h.reportService.SalesTrend(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, points)
}
