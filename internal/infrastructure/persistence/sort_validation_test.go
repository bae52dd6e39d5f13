package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	for in, want := range map[string]string{
		"":                          "DESC",
		"asc":                       "ASC",
		"  ASC ":                    "ASC",
		"desc":                      "DESC",
		"sideways":                  "DESC",
		"ASC; DELETE FROM batches":  "DESC",
		"\t":                        "DESC",
	} {
		assert.Equal(t, want, ValidateSortOrder(in), "%q", in)
	}
}

func TestValidateSortField_Sales(t *testing.T) {
	cases := []struct {
		in, def, want string
	}{
		{"", "created_at", "created_at"},
		{"total", "created_at", "total"},
		{" total ", "created_at", "total"},
		{"TOTAL", "created_at", "created_at"},
		{"drug_name", "created_at", "created_at"},
		{"idempotency_key", "created_at", "created_at"},
		{"total desc", "created_at", "created_at"},
		{"total'--", "created_at", "created_at"},
		{"unknown", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidateSortField(tc.in, SaleSortFields, tc.def), "%q", tc.in)
	}
}
