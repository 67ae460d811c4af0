package logging

import (
	"context"
	"log/slog"
)

// OperationKey is the attribute that selects the collector bucket.
const OperationKey = "operation"

// CapturingHandler copies every record into a LogCollector and forwards
// records the underlying handler is enabled for.
type CapturingHandler struct {
	underlying slog.Handler
	collector  *LogCollector
	operation  string
	attrs      []slog.Attr
}

// NewCapturingHandler wraps underlying so records also land in collector.
func NewCapturingHandler(underlying slog.Handler, collector *LogCollector) *CapturingHandler {
	return &CapturingHandler{
		underlying: underlying,
		collector:  collector,
	}
}

// Enabled reports true for every level so debug records are captured even
// when they are not written out.
func (h *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle captures r and passes it on if the underlying handler wants it.
func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Time:       r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}

	key := h.operation
	for _, attr := range h.attrs {
		entry.Attributes[attr.Key] = resolveValue(attr.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == OperationKey {
			key = a.Value.String()
		}
		entry.Attributes[a.Key] = resolveValue(a.Value)
		return true
	})
	if key == "" {
		key = GeneralKey
	}
	h.collector.AddLog(key, entry)

	if !h.underlying.Enabled(ctx, r.Level) {
		return nil
	}
	return h.underlying.Handle(ctx, r)
}

// WithAttrs returns a CapturingHandler carrying attrs. An operation attribute
// sets the bucket for all records logged through the result.
func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	operation := h.operation
	for _, a := range attrs {
		if a.Key == OperationKey {
			operation = a.Value.String()
		}
	}

	return &CapturingHandler{
		underlying: h.underlying.WithAttrs(attrs),
		collector:  h.collector,
		operation:  operation,
		attrs:      newAttrs,
	}
}

// WithGroup returns a CapturingHandler whose output is grouped. Captured
// attributes stay flat.
func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		underlying: h.underlying.WithGroup(name),
		collector:  h.collector,
		operation:  h.operation,
		attrs:      h.attrs,
	}
}

// resolveValue converts a slog.Value to something encoding/json can write.
func resolveValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindGroup:
		attrs := v.Group()
		group := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			group[attr.Key] = resolveValue(attr.Value)
		}
		return group
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}
