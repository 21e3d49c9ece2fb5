package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
)

// slogLoggerProvider hands OpenTelemetry log records to a slog handler. It
// lets the otelslog loggers of every package print locally when no exporter
// is configured.
type slogLoggerProvider struct {
	embedded.LoggerProvider
	handler slog.Handler
}

func NewSlogLoggerProvider(handler slog.Handler) log.LoggerProvider {
	return &slogLoggerProvider{handler: handler}
}

func (p *slogLoggerProvider) Logger(name string, _ ...log.LoggerOption) log.Logger {
	return &slogLogger{handler: p.handler.WithAttrs([]slog.Attr{slog.String("scope", name)})}
}

type slogLogger struct {
	embedded.Logger
	handler slog.Handler
}

// otel severities are offset by 9 from slog levels (Info is 9 and 0).
func toSlogLevel(severity log.Severity) slog.Level {
	return slog.Level(int(severity) - 9)
}

func (l *slogLogger) Enabled(ctx context.Context, param log.EnabledParameters) bool {
	return l.handler.Enabled(ctx, toSlogLevel(param.Severity))
}

func (l *slogLogger) Emit(ctx context.Context, record log.Record) {
	level := toSlogLevel(record.Severity())
	if !l.handler.Enabled(ctx, level) {
		return
	}

	timestamp := record.Timestamp()
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	r := slog.NewRecord(timestamp, level, record.Body().AsString(), 0)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		r.AddAttrs(toSlogAttr(kv))
		return true
	})
	_ = l.handler.Handle(ctx, r)
}

func toSlogAttr(kv log.KeyValue) slog.Attr {
	return slog.Attr{Key: kv.Key, Value: toSlogValue(kv.Value)}
}

func toSlogValue(v log.Value) slog.Value {
	switch v.Kind() {
	case log.KindBool:
		return slog.BoolValue(v.AsBool())
	case log.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case log.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case log.KindString:
		return slog.StringValue(v.AsString())
	case log.KindMap:
		attrs := make([]slog.Attr, 0, len(v.AsMap()))
		for _, kv := range v.AsMap() {
			attrs = append(attrs, toSlogAttr(kv))
		}
		return slog.GroupValue(attrs...)
	case log.KindEmpty:
		return slog.AnyValue(nil)
	default:
		return slog.StringValue(v.String())
	}
}
