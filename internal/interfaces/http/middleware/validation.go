package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator reports fields by their JSON (or form) names and registers
// the payment_method tag. It is safe to call more than once.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", validatePaymentMethod)
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	return sales.PaymentMethod(fl.Field().String()).IsValid()
}

// FormatValidationErrors turns binding errors into the error envelope. A body
// that is not valid JSON yields a single message without field details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
		return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	}

	return dto.NewValidationErrorResponse("Malformed request: "+err.Error(), requestID, nil)
}

// HandleValidationError writes a 400 validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, getRequestID(c)))
}

// fixedMessages covers tags whose message ignores the tag parameter.
var fixedMessages = map[string]string{
	"required":       "This field is required",
	"uuid":           "Invalid UUID format",
	"payment_method": "Must be one of: cash card credit mobile_payment",
}

// paramMessages prefix the tag parameter, e.g. "Must be at least 1".
var paramMessages = map[string]string{
	"min":      "Must be at least ",
	"max":      "Must be at most ",
	"oneof":    "Must be one of: ",
	"datetime": "Must be a date formatted as ",
	"gt":       "Must be greater than ",
	"gte":      "Must be greater than or equal to ",
}

func getValidationMessage(e validator.FieldError) string {
	if msg, ok := fixedMessages[e.Tag()]; ok {
		return msg
	}
	prefix, ok := paramMessages[e.Tag()]
	if !ok {
		return "Invalid value"
	}
	msg := prefix + e.Param()
	if (e.Tag() == "min" || e.Tag() == "max") && e.Type().Kind() == reflect.String {
		msg += " characters"
	}
	return msg
}
