// Package attrs bridges slog-style key/value pairs to OpenTelemetry
// attributes so audit log lines and span events carry the same fields.
package attrs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Lookup returns the string form of key in a [k1, v1, k2, v2, ...] slice.
// Non-string keys are skipped; values are formatted with fmt.Sprint. Stringers
// such as typed ids come out in their canonical form.
func Lookup(kv []any, key string) (string, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v, v != ""
		case nil:
			return "", false
		default:
			s := fmt.Sprint(v)
			return s, s != ""
		}
	}
	return "", false
}

// Select converts the listed keys of kv into span attributes, in keys order.
// Missing and empty keys are left out.
func Select(kv []any, keys ...string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		if v, ok := Lookup(kv, key); ok {
			out = append(out, attribute.String(key, v))
		}
	}
	return out
}

// AddSpanEvent records event on the span in ctx with the selected keys. It is
// a no-op when the span is not recording.
func AddSpanEvent(ctx context.Context, event string, kv []any, keys ...string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	eventAttrs := append([]attribute.KeyValue{attribute.String("event", event)}, Select(kv, keys...)...)
	span.AddEvent(event, trace.WithAttributes(eventAttrs...))
}
