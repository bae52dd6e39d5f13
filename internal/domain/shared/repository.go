package shared

// Filter represents list query options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	// Skip, when positive, replaces the page-derived offset
	Skip int
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Skip > 0 {
		return f.Skip
	}
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
