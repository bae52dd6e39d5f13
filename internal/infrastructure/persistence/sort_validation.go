package persistence

import "strings"

// ValidateSortOrder maps a client direction onto ASC or DESC. Anything other
// than a case-insensitive "asc" sorts newest first.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when allowed lists it, else defaultField.
// The result is interpolated into ORDER BY, so only whitelisted columns pass.
func ValidateSortField(sortField string, allowed map[string]bool, defaultField string) string {
	if f := strings.TrimSpace(sortField); allowed[f] {
		return f
	}
	return defaultField
}

// SaleSortFields are the sale columns clients may order by.
var SaleSortFields = map[string]bool{
	"created_at":     true,
	"sale_number":    true,
	"total":          true,
	"payment_method": true,
}
