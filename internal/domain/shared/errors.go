package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrValidation          = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrInvalidLine         = NewDomainError("INVALID_LINE", "Invalid sale line")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrUnknownBatch        = NewDomainError("UNKNOWN_BATCH", "Batch not found")
	ErrUnknownDrug         = NewDomainError("UNKNOWN_DRUG", "Drug not found")
	ErrInsufficientHistory = NewDomainError("INSUFFICIENT_HISTORY", "Not enough sales history to forecast")
	ErrStorageConflict     = NewDomainError("STORAGE_CONFLICT", "Stock was modified by a concurrent operation")
)

// InsufficientStockError carries the drug and quantities behind an
// ErrInsufficientStock failure. errors.Is(err, ErrInsufficientStock) holds.
type InsufficientStockError struct {
	DrugID    uuid.UUID
	Requested int
	Available int
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(drugID uuid.UUID, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		DrugID:    drugID,
		Requested: requested,
		Available: available,
	}
}

// Error implements the error interface
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: drug %s requested %d, available %d",
		ErrInsufficientStock.Message, e.DrugID, e.Requested, e.Available)
}

// Unwrap returns ErrInsufficientStock
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
