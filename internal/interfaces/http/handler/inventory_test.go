package handler_test

import (
	"net/http"
	"testing"

	inventoryapp "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/dto"
	"github.com/benedict431app/PharmacyOS/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveBatch(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Metformin 850mg", "0.80", 20)
	expiry := testutil.DaysFromToday(365).Format(inventoryapp.DateLayout)

	body := map[string]any{
		"drug_id":     drug,
		"lot_number":  "MET-2026-01",
		"quantity":    120,
		"expiry_date": expiry,
		"cost_price":  "0.35",
	}
	status, resp := f.do(t, http.MethodPost, "/api/v1/inventory/batches", body)
	require.Equal(t, http.StatusCreated, status)
	batch := decodeData[inventoryapp.BatchResponse](t, resp)
	assert.Equal(t, drug, batch.DrugID)
	assert.Equal(t, 120, batch.QuantityOnHand)
	assert.Equal(t, expiry, batch.ExpiryDate)
	assert.Equal(t, "active", batch.Status)
	assert.Equal(t, 365, batch.DaysUntilExpiry)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "duplicate lot",
			body:   body,
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name: "unknown drug",
			body: map[string]any{
				"drug_id": uuid.New(), "lot_number": "X-1", "quantity": 1, "expiry_date": expiry,
			},
			status: http.StatusNotFound,
			code:   dto.ErrCodeNotFound,
		},
		{
			name: "already expired",
			body: map[string]any{
				"drug_id": drug, "lot_number": "OLD-1", "quantity": 5,
				"expiry_date": testutil.DaysFromToday(-1).Format(inventoryapp.DateLayout),
			},
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name: "bad date format",
			body: map[string]any{
				"drug_id": drug, "lot_number": "BAD-1", "quantity": 5, "expiry_date": "31/12/2027",
			},
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name: "zero quantity",
			body: map[string]any{
				"drug_id": drug, "lot_number": "ZERO-1", "quantity": 0, "expiry_date": expiry,
			},
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := f.do(t, http.MethodPost, "/api/v1/inventory/batches", tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRestockAndRecall(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Salbutamol Inhaler", "6.00", 2)
	batch := testutil.InsertBatch(t, f.db, drug, "SAL-9", 3, testutil.DaysFromToday(180), "")
	batchPath := "/api/v1/inventory/batches/" + batch.String()

	status, resp := f.do(t, http.MethodPost, batchPath+"/restock", map[string]any{"quantity": 7})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10, decodeData[inventoryapp.BatchResponse](t, resp).QuantityOnHand)

	status, resp = f.do(t, http.MethodPost, batchPath+"/restock", map[string]any{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	status, resp = f.do(t, http.MethodPost, batchPath+"/recall", map[string]any{"reason": "manufacturer notice"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "recalled", decodeData[inventoryapp.BatchResponse](t, resp).Status)
	assert.Equal(t, "recalled", testutil.BatchStatus(t, f.db, batch))

	status, resp = f.do(t, http.MethodPost, batchPath+"/recall", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, dto.ErrCodeConflict, resp.Error.Code)

	status, resp = f.do(t, http.MethodPost, "/api/v1/inventory/batches/"+uuid.NewString()+"/restock", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestListDrugBatches(t *testing.T) {
	f := newAPIFixture(t)
	drug := testutil.InsertDrug(t, f.db, "Omeprazole 20mg", "0.90", 0)
	late := testutil.InsertBatch(t, f.db, drug, "OM-LATE", 5, testutil.DaysFromToday(400), "")
	early := testutil.InsertBatch(t, f.db, drug, "OM-EARLY", 5, testutil.DaysFromToday(40), "")
	testutil.InsertBatch(t, f.db, drug, "OM-EMPTY", 0, testutil.DaysFromToday(10), "")
	testutil.InsertBatch(t, f.db, drug, "OM-RECALL", 9, testutil.DaysFromToday(20), "recalled")

	path := "/api/v1/inventory/drugs/" + drug.String() + "/batches"

	status, resp := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	batches := decodeData[[]inventoryapp.BatchResponse](t, resp)
	require.Len(t, batches, 2)
	assert.Equal(t, early, batches[0].ID, "earliest expiry first")
	assert.Equal(t, late, batches[1].ID)

	status, resp = f.do(t, http.MethodGet, path+"?all=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]inventoryapp.BatchResponse](t, resp), 4)

	status, resp = f.do(t, http.MethodGet, "/api/v1/inventory/batches/"+early.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OM-EARLY", decodeData[inventoryapp.BatchResponse](t, resp).LotNumber)

	status, _ = f.do(t, http.MethodGet, "/api/v1/inventory/drugs/"+uuid.NewString()+"/batches", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
