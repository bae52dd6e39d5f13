package handler_test

import (
	"net/http"
	"testing"

	salesapp "github.com/benedict431app/PharmacyOS/internal/application/sales"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/dto"
	"github.com/benedict431app/PharmacyOS/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saleBody(method string, lines ...map[string]any) map[string]any {
	return map[string]any{"payment_method": method, "lines": lines}
}

func saleLine(drugID uuid.UUID, qty int) map[string]any {
	return map[string]any{"drug_id": drugID, "quantity": qty}
}

func TestPostSale(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Amoxicillin 500mg", "2.50", 5)
	early := testutil.InsertBatch(t, f.db, drug, "LOT-A", 4, testutil.DaysFromToday(20), "")
	late := testutil.InsertBatch(t, f.db, drug, "LOT-B", 10, testutil.DaysFromToday(200), "")

	status, resp := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("cash", saleLine(drug, 6)))
	require.Equal(t, http.StatusCreated, status)
	require.True(t, resp.Success)

	sale := decodeData[salesapp.SaleResponse](t, resp)
	require.Len(t, sale.Lines, 1)
	allocs := sale.Lines[0].Allocations
	require.Len(t, allocs, 2)
	assert.Equal(t, early, allocs[0].BatchID)
	assert.Equal(t, 4, allocs[0].Quantity)
	assert.Equal(t, late, allocs[1].BatchID)
	assert.Equal(t, 2, allocs[1].Quantity)
	assert.True(t, decimal.RequireFromString("15").Equal(sale.Total))
	assert.Equal(t, 6, sale.TotalUnits)

	assert.Equal(t, 0, testutil.BatchQuantity(t, f.db, early))
	assert.Equal(t, 8, testutil.BatchQuantity(t, f.db, late))
}

func TestPostSale_IdempotentReplay(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Ibuprofen 200mg", "1.20", 0)
	batch := testutil.InsertBatch(t, f.db, drug, "IB-1", 10, testutil.DaysFromToday(90), "")
	body := saleBody("card", saleLine(drug, 3))

	status, first := f.do(t, http.MethodPost, "/api/v1/sales", body, "Idempotency-Key", "till-7-000123")
	require.Equal(t, http.StatusCreated, status)

	status, second := f.do(t, http.MethodPost, "/api/v1/sales", body, "Idempotency-Key", "till-7-000123")
	require.Equal(t, http.StatusOK, status)

	original := decodeData[salesapp.SaleResponse](t, first)
	replayed := decodeData[salesapp.SaleResponse](t, second)
	assert.Equal(t, original.ID, replayed.ID)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, "till-7-000123", replayed.IdempotencyKey)
	assert.Equal(t, 7, testutil.BatchQuantity(t, f.db, batch), "stock is decremented once")
}

func TestPostSale_Errors(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Insulin Glargine", "30.00", 0)
	sellable := testutil.InsertBatch(t, f.db, drug, "INS-1", 2, testutil.DaysFromToday(60), "")
	recalled := testutil.InsertBatch(t, f.db, drug, "INS-0", 5, testutil.DaysFromToday(30), "recalled")

	t.Run("insufficient stock carries details", func(t *testing.T) {
		status, resp := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("cash", saleLine(drug, 3)))
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)

		details, ok := resp.Error.Details.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, drug.String(), details["drug_id"])
		assert.EqualValues(t, 3, details["requested"])
		assert.EqualValues(t, 2, details["available"], "recalled stock is not available")
	})

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown payment method", saleBody("bitcoin", saleLine(drug, 1)), http.StatusBadRequest, dto.ErrCodeValidation},
		{"no lines", saleBody("cash"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"zero quantity", saleBody("cash", saleLine(drug, 0)), http.StatusBadRequest, dto.ErrCodeInvalidLine},
		{"unknown drug", saleBody("cash", saleLine(uuid.New(), 1)), http.StatusBadRequest, dto.ErrCodeInvalidLine},
		{"malformed json", `{"payment_method": "cash", "lines": [`, http.StatusBadRequest, dto.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := f.do(t, http.MethodPost, "/api/v1/sales", tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}

	t.Run("binding errors name the field", func(t *testing.T) {
		_, resp := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("bitcoin", saleLine(drug, 1)))
		details, ok := resp.Error.Details.([]any)
		require.True(t, ok)
		require.Len(t, details, 1)
		assert.Equal(t, "payment_method", details[0].(map[string]any)["field"])
	})

	assert.Equal(t, 2, testutil.BatchQuantity(t, f.db, sellable), "failed sales leave stock untouched")
	assert.Equal(t, 5, testutil.BatchQuantity(t, f.db, recalled))
	assert.Zero(t, testutil.CountRows(t, f.db, &models.SaleModel{}))
}

func TestGetAndListSales(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Cetirizine 10mg", "0.50", 0)
	testutil.InsertBatch(t, f.db, drug, "CT-1", 50, testutil.DaysFromToday(300), "")

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		status, resp := f.do(t, http.MethodPost, "/api/v1/sales", saleBody("mobile_payment", saleLine(drug, i+1)))
		require.Equal(t, http.StatusCreated, status)
		ids = append(ids, decodeData[salesapp.SaleResponse](t, resp).ID)
	}

	status, resp := f.do(t, http.MethodGet, "/api/v1/sales/"+ids[1].String(), nil)
	require.Equal(t, http.StatusOK, status)
	sale := decodeData[salesapp.SaleResponse](t, resp)
	assert.Equal(t, ids[1], sale.ID)
	assert.Equal(t, "mobile_payment", sale.PaymentMethod)

	status, resp = f.do(t, http.MethodGet, "/api/v1/sales?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, status)
	list := decodeData[[]salesapp.SaleResponse](t, resp)
	assert.Len(t, list, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Limit)
	assert.Equal(t, 1, resp.Meta.Offset)

	status, resp = f.do(t, http.MethodGet, "/api/v1/sales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)

	status, resp = f.do(t, http.MethodGet, "/api/v1/sales/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	status, _ = f.do(t, http.MethodGet, "/api/v1/sales?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
