package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	alertapp "github.com/benedict431app/PharmacyOS/internal/application/alert"
	forecastapp "github.com/benedict431app/PharmacyOS/internal/application/forecast"
	inventoryapp "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	reportapp "github.com/benedict431app/PharmacyOS/internal/application/report"
	salesapp "github.com/benedict431app/PharmacyOS/internal/application/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/cache"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/strategy"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/dto"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/handler"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/middleware"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/router"
	"github.com/benedict431app/PharmacyOS/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// apiFixture serves the full API over an in-memory SQLite database
type apiFixture struct {
	db     *gorm.DB
	engine *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	registry, err := strategy.NewRegistryWithDefaults()
	require.NoError(t, err)

	drugRepo := persistence.NewGormDrugRepository(db)
	batchRepo := persistence.NewGormBatchRepository(db, nil)
	saleRepo := persistence.NewGormSaleRepository(db)
	txScope := persistence.NewGormTransactionScope(db, nil)

	saleService := salesapp.NewSaleService(saleRepo, drugRepo, batchRepo, txScope, registry, salesapp.DefaultConfig(), nil)
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	saleService.SetIdempotencyStore(store)

	inventoryService := inventoryapp.NewInventoryService(batchRepo, drugRepo, txScope, nil)
	alertService := alertapp.NewAlertService(drugRepo, batchRepo, alert.DefaultRules(), nil)
	forecastService := forecastapp.NewForecastService(
		persistence.NewGormForecastRepository(db), saleRepo, drugRepo, registry, forecastapp.DefaultConfig(), nil)
	reportService := reportapp.NewReportService(saleRepo, drugRepo, batchRepo, 30)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", handler.NewHealthHandler("pharmaos", "test").Health)

	r := router.NewRouter(engine)
	router.RegisterAPI(r, router.Handlers{
		Sales:     handler.NewSaleHandler(saleService),
		Inventory: handler.NewInventoryHandler(inventoryService),
		Alerts:    handler.NewAlertHandler(alertService),
		Forecasts: handler.NewForecastHandler(forecastService),
		Reports:   handler.NewReportHandler(reportService),
	})
	r.Setup()

	return &apiFixture{db: db, engine: engine}
}

// apiResponse mirrors dto.Response with raw data for typed decoding
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}
