package inventory

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeBatch = "Batch"

// Event type constants
const (
	EventTypeBatchReceived  = "BatchReceived"
	EventTypeBatchRestocked = "BatchRestocked"
	EventTypeBatchRecalled  = "BatchRecalled"
	EventTypeBatchExpired   = "BatchExpired"
)

// BatchReceivedEvent is raised when a new lot arrives
type BatchReceivedEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID `json:"batch_id"`
	DrugID     uuid.UUID `json:"drug_id"`
	LotNumber  string    `json:"lot_number"`
	Quantity   int       `json:"quantity"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// NewBatchReceivedEvent creates a new BatchReceivedEvent
func NewBatchReceivedEvent(b *Batch) *BatchReceivedEvent {
	return &BatchReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchReceived, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		DrugID:          b.DrugID,
		LotNumber:       b.LotNumber,
		Quantity:        b.QuantityOnHand,
		ExpiryDate:      b.ExpiryDate,
	}
}

// BatchRestockedEvent is raised when units are added to an existing lot
type BatchRestockedEvent struct {
	shared.BaseDomainEvent
	BatchID     uuid.UUID `json:"batch_id"`
	DrugID      uuid.UUID `json:"drug_id"`
	Amount      int       `json:"amount"`
	QuantityNow int       `json:"quantity_now"`
}

// NewBatchRestockedEvent creates a new BatchRestockedEvent
func NewBatchRestockedEvent(b *Batch, amount int) *BatchRestockedEvent {
	return &BatchRestockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchRestocked, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		DrugID:          b.DrugID,
		Amount:          amount,
		QuantityNow:     b.QuantityOnHand,
	}
}

// BatchRecalledEvent is raised when a lot is withdrawn from sale
type BatchRecalledEvent struct {
	shared.BaseDomainEvent
	BatchID   uuid.UUID `json:"batch_id"`
	DrugID    uuid.UUID `json:"drug_id"`
	LotNumber string    `json:"lot_number"`
	Reason    string    `json:"reason,omitempty"`
}

// NewBatchRecalledEvent creates a new BatchRecalledEvent
func NewBatchRecalledEvent(b *Batch, reason string) *BatchRecalledEvent {
	return &BatchRecalledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchRecalled, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		DrugID:          b.DrugID,
		LotNumber:       b.LotNumber,
		Reason:          reason,
	}
}

// BatchExpiredEvent is raised when the expiry sweep retires a lot
type BatchExpiredEvent struct {
	shared.BaseDomainEvent
	BatchID        uuid.UUID `json:"batch_id"`
	DrugID         uuid.UUID `json:"drug_id"`
	LotNumber      string    `json:"lot_number"`
	QuantityOnHand int       `json:"quantity_on_hand"`
}

// NewBatchExpiredEvent creates a new BatchExpiredEvent
func NewBatchExpiredEvent(b *Batch) *BatchExpiredEvent {
	return &BatchExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchExpired, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		DrugID:          b.DrugID,
		LotNumber:       b.LotNumber,
		QuantityOnHand:  b.QuantityOnHand,
	}
}
