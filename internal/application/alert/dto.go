package alert

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
)

// AlertFilter narrows an evaluation to one kind or severity
type AlertFilter struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=out_of_stock low_stock expiring_soon expired"`
	Severity string `form:"severity" binding:"omitempty,oneof=critical warning"`
}

// AlertsResponse is the result of an alert evaluation
type AlertsResponse struct {
	Alerts      []alert.Alert      `json:"alerts"`
	Counts      map[alert.Kind]int `json:"counts"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

// SweepStats contains statistics about an expiry sweep
type SweepStats struct {
	TotalExpired int       `json:"total_expired"`
	Marked       int       `json:"marked"`
	Failed       int       `json:"failed"`
	ProcessedAt  time.Time `json:"processed_at"`
}

func (f AlertFilter) apply(alerts []alert.Alert) []alert.Alert {
	if f.Kind == "" && f.Severity == "" {
		return alerts
	}
	out := make([]alert.Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.Kind != "" && string(a.Kind) != f.Kind {
			continue
		}
		if f.Severity != "" && string(a.Severity) != f.Severity {
			continue
		}
		out = append(out, a)
	}
	return out
}
