package dto

import (
	"errors"
	"net/http"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
)

// API error codes. Format: ERR_<DESCRIPTION>
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeInvalidLine         = "ERR_INVALID_LINE"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
	ErrCodeInsufficientHistory = "ERR_INSUFFICIENT_HISTORY"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeUnavailable         = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeInvalidLine:         http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInsufficientStock:   http.StatusUnprocessableEntity,
	ErrCodeInsufficientHistory: http.StatusUnprocessableEntity,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:         http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes is checked in order with errors.Is. A line that names an
// unknown drug is reported as an invalid line, not a missing resource.
var domainErrorCodes = []struct {
	target error
	code   string
}{
	{shared.ErrInsufficientStock, ErrCodeInsufficientStock},
	{shared.ErrInvalidLine, ErrCodeInvalidLine},
	{shared.ErrValidation, ErrCodeValidation},
	{shared.ErrUnknownDrug, ErrCodeNotFound},
	{shared.ErrUnknownBatch, ErrCodeNotFound},
	{shared.ErrNotFound, ErrCodeNotFound},
	{shared.ErrInsufficientHistory, ErrCodeInsufficientHistory},
	{shared.ErrInvalidState, ErrCodeConflict},
	{shared.ErrAlreadyExists, ErrCodeConflict},
	{shared.ErrStorageConflict, ErrCodeConflict},
}

// ErrorCodeFor returns the API error code for err. ok is false for errors
// that are not domain errors; those render as ERR_INTERNAL.
func ErrorCodeFor(err error) (code string, ok bool) {
	for _, m := range domainErrorCodes {
		if errors.Is(err, m.target) {
			return m.code, true
		}
	}
	return ErrCodeInternal, false
}

// ErrorDetails returns the structured details attached to err, if any
func ErrorDetails(err error) any {
	var stock *shared.InsufficientStockError
	if errors.As(err, &stock) {
		return InsufficientStockDetail{
			DrugID:    stock.DrugID.String(),
			Requested: stock.Requested,
			Available: stock.Available,
		}
	}
	return nil
}
