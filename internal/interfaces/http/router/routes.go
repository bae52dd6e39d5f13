package router

import (
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by RegisterAPI
type Handlers struct {
	Sales     *handler.SaleHandler
	Inventory *handler.InventoryHandler
	Alerts    *handler.AlertHandler
	Forecasts *handler.ForecastHandler
	Reports   *handler.ReportHandler
}

// RegisterAPI registers the PharmacyOS domain groups on r and returns them
func RegisterAPI(r *Router, h Handlers) []*DomainGroup {
	salesRoutes := NewDomainGroup("sales", "/sales").
		POST("", h.Sales.PostSale).
		GET("", h.Sales.ListSales).
		GET("/:id", h.Sales.GetSale)

	inventoryRoutes := NewDomainGroup("inventory", "/inventory")
	inventoryRoutes.Group("batches", "/batches").
		POST("", h.Inventory.ReceiveBatch).
		GET("/:id", h.Inventory.GetBatch).
		POST("/:id/restock", h.Inventory.Restock).
		POST("/:id/recall", h.Inventory.Recall)
	inventoryRoutes.Group("drugs", "/drugs").
		GET("/:drug_id/batches", h.Inventory.ListDrugBatches)

	alertRoutes := NewDomainGroup("alerts", "/alerts").
		GET("", h.Alerts.ListAlerts).
		POST("/sweep", h.Alerts.Sweep)

	forecastRoutes := NewDomainGroup("forecasts", "/forecasts").
		POST("", h.Forecasts.CreateForecast).
		POST("/run", h.Forecasts.RunAll)
	forecastRoutes.Group("drugs", "/drugs").
		GET("/:drug_id", h.Forecasts.ListDrugForecasts).
		GET("/:drug_id/latest", h.Forecasts.LatestDrugForecast)

	reportRoutes := NewDomainGroup("reports", "/reports").
		GET("/dashboard", h.Reports.Dashboard).
		GET("/top-selling", h.Reports.TopSelling).
		GET("/revenue", h.Reports.Revenue).
		GET("/sales-trend", h.Reports.SalesTrend)

	groups := []*DomainGroup{salesRoutes, inventoryRoutes, alertRoutes, forecastRoutes, reportRoutes}
	for _, g := range groups {
		r.Register(g)
	}
	return groups
}
