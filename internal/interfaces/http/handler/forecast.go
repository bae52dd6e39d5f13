package handler

import (
	forecastapp "github.com/benedict431app/PharmacyOS/internal/application/forecast"
	"github.com/gin-gonic/gin"
)

// ForecastHandler handles demand forecast endpoints
type ForecastHandler struct {
	BaseHandler
	forecastService *forecastapp.ForecastService
}

// NewForecastHandler creates a new ForecastHandler
func NewForecastHandler(forecastService *forecastapp.ForecastService) *ForecastHandler {
	return &ForecastHandler{forecastService: forecastService}
}

// runRequest is the optional body of a forecast run
type runRequest struct {
	HorizonDays int `json:"horizon_days" binding:"omitempty,min=1,max=365"`
}

// CreateForecast forecasts one drug and stores the result
//
// POST /forecasts
func (h *ForecastHandler) CreateForecast(c *gin.Context) {
	var req forecastapp.ForecastRequest
	if !h.bindJSON(c, &req) {
		return
	}

	f, err := h.forecastService.Forecast(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, f)
}

// ListDrugForecasts returns a drug's stored forecasts, newest first
//
// GET /forecasts/drugs/:drug_id
func (h *ForecastHandler) ListDrugForecasts(c *gin.Context) {
	drugID, ok := h.pathUUID(c, "drug_id")
	if !ok {
		return
	}
	var filter forecastapp.ForecastListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	list, err := h.forecastService.ListForecasts(c.Request.Context(), drugID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, list)
}

// LatestDrugForecast returns the most recent forecast of a drug
//
// GET /forecasts/drugs/:drug_id/latest
func (h *ForecastHandler) LatestDrugForecast(c *gin.Context) {
	drugID, ok := h.pathUUID(c, "drug_id")
	if !ok {
		return
	}

	f, err := h.forecastService.LatestForecast(c.Request.Context(), drugID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, f)
}

// RunAll forecasts every active drug with the default model
//
// POST /forecasts/run
func (h *ForecastHandler) RunAll(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	stats, err := h.forecastService.RunAll(c.Request.Context(), req.HorizonDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
