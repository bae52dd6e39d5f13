package inventory

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format accepted for expiry and purchase dates
const DateLayout = "2006-01-02"

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID              uuid.UUID       `json:"id"`
	DrugID          uuid.UUID       `json:"drug_id"`
	LotNumber       string          `json:"lot_number"`
	QuantityOnHand  int             `json:"quantity_on_hand"`
	ExpiryDate      string          `json:"expiry_date"`
	PurchaseDate    string          `json:"purchase_date"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	Status          string          `json:"status"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ReceiveBatchRequest represents a delivery of a new lot
type ReceiveBatchRequest struct {
	DrugID       uuid.UUID        `json:"drug_id" binding:"required"`
	LotNumber    string           `json:"lot_number" binding:"required,min=1,max=50"`
	Quantity     int              `json:"quantity" binding:"required,min=1"`
	ExpiryDate   string           `json:"expiry_date" binding:"required,datetime=2006-01-02"`
	PurchaseDate string           `json:"purchase_date" binding:"omitempty,datetime=2006-01-02"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
}

// RestockRequest adds units to an existing lot
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// RecallRequest withdraws a lot from sale
type RecallRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// BatchListFilter selects which batches of a drug to list
type BatchListFilter struct {
	// All includes recalled, expired and empty batches
	All bool `form:"all"`
}

// ToBatchResponse converts a domain Batch to BatchResponse
func ToBatchResponse(b *inventory.Batch, now time.Time) BatchResponse {
	return BatchResponse{
		ID:              b.ID,
		DrugID:          b.DrugID,
		LotNumber:       b.LotNumber,
		QuantityOnHand:  b.QuantityOnHand,
		ExpiryDate:      b.ExpiryDate.Format(DateLayout),
		PurchaseDate:    b.PurchaseDate.Format(DateLayout),
		CostPrice:       b.CostPrice,
		Status:          string(b.Status),
		DaysUntilExpiry: b.DaysUntilExpiry(now),
		Version:         b.Version,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// ToBatchResponses converts a slice of domain Batches
func ToBatchResponses(batches []inventory.Batch, now time.Time) []BatchResponse {
	responses := make([]BatchResponse, len(batches))
	for i := range batches {
		responses[i] = ToBatchResponse(&batches[i], now)
	}
	return responses
}
