package telemetry

import (
	"context"
	"runtime/pprof"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys attached to profiling samples.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelDomain     = "domain"
)

// Operation names shared by profiling labels and service span names.
const (
	OperationPostSale       = "post_sale"
	OperationReceiveBatch   = "receive_batch"
	OperationRestockBatch   = "restock_batch"
	OperationRecallBatch    = "recall_batch"
	OperationEvaluateAlerts = "evaluate_alerts"
	OperationSweepExpired   = "sweep_expired"
	OperationForecastDemand = "forecast_demand"
	OperationForecastRunAll = "forecast_run_all"
)

// MaxLabelValueLength caps label values; longer values are truncated.
const MaxLabelValueLength = 128

// Per-entity identifiers explode Pyroscope's label index and are never
// attached to samples.
var unboundedLabels = map[string]bool{
	"request_id":  true,
	"trace_id":    true,
	"span_id":     true,
	"sale_id":     true,
	"batch_id":    true,
	"drug_id":     true,
	"terminal_id": true,
}

// WithProfilingLabels runs fn with labels attached to CPU samples via the
// Pyroscope SDK. The labels map is read, never retained.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	kv := labelPairs(labels)
	if len(kv) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(kv...), fn)
}

// WithPprofLabels is WithProfilingLabels for plain runtime/pprof consumers.
func WithPprofLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	kv := labelPairs(labels)
	if len(kv) == 0 {
		fn(ctx)
		return
	}
	pprof.Do(ctx, pprof.Labels(kv...), fn)
}

// labelPairs flattens labels into sorted key/value pairs with snake_case keys,
// dropping empty entries and unbounded identifiers.
func labelPairs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := labels[k]
		key := labelKey(k)
		if key == "" || v == "" || unboundedLabels[key] {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		out = append(out, key, v)
	}
	return out
}

func labelKey(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// HTTPRequestLabels labels a request by handler group, route pattern and
// method. Empty parts are omitted.
func HTTPRequestLabels(controller, route, method string) map[string]string {
	labels := map[string]string{}
	for k, v := range map[string]string{
		ProfilingLabelController: controller,
		ProfilingLabelRoute:      route,
		ProfilingLabelMethod:     method,
	} {
		if v != "" {
			labels[k] = v
		}
	}
	return labels
}

func domainLabels(domain, operation string) map[string]string {
	return map[string]string{ProfilingLabelDomain: domain, ProfilingLabelOperation: operation}
}

func SalesOperationLabels(operation string) map[string]string {
	return domainLabels("sales", operation)
}

func InventoryOperationLabels(operation string) map[string]string {
	return domainLabels("inventory", operation)
}

func ForecastOperationLabels(operation string) map[string]string {
	return domainLabels("forecast", operation)
}
