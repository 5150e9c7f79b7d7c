package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelOperation = "operation"
	ProfilingLabelTask      = "task"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped; every distinct value would become its
// own profile series
var highCardinalityLabels = map[string]bool{
	"item_id":        true,
	"reservation_id": true,
	"order_ref":      true,
	"request_id":     true,
	"trace_id":       true,
	"span_id":        true,
	"actor_id":       true,
}

// WithProfilingLabels runs fn with pprof labels so profile samples can be
// sliced by them in Pyroscope.
//
//	telemetry.WithProfilingLabels(ctx, telemetry.TaskLabels("expiry-sweep"), func(c context.Context) {
//	    stats, err = sweeper.Sweep(c)
//	})
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// HTTPRequestLabels labels a request by route and method
func HTTPRequestLabels(route, method string) map[string]string {
	return compact(map[string]string{
		ProfilingLabelRoute:  route,
		ProfilingLabelMethod: method,
	})
}

// OperationLabels labels a ledger operation
func OperationLabels(operation string) map[string]string {
	return compact(map[string]string{ProfilingLabelOperation: operation})
}

// TaskLabels labels a background task run
func TaskLabels(task string) map[string]string {
	return compact(map[string]string{ProfilingLabelTask: task})
}

func compact(labels map[string]string) map[string]string {
	for k, v := range labels {
		if v == "" {
			delete(labels, k)
		}
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs with empty and high
// cardinality labels removed and values truncated
func sanitizeLabels(labels map[string]string) []string {
	clean := make(map[string]string, len(labels))
	for k, v := range labels {
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		clean[key] = v
	}
	if len(clean) == 0 {
		return nil
	}

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, clean[k])
	}
	return pairs
}

// sanitizeLabelKey lowercases k and keeps only [a-z0-9_]
func sanitizeLabelKey(k string) string {
	k = strings.ToLower(k)
	var b strings.Builder
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}
