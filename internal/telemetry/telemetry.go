// Package telemetry installs the global OpenTelemetry providers used by the
// package level tracers and otelslog loggers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ServiceName = "multi-ai-user-debates"

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

type Options struct {
	// Exporter selects where spans and log records go. With ExporterNone
	// spans are dropped and log records are written as JSON lines.
	Exporter string
	LogLevel string
	Writer   io.Writer
}

type ShutdownFunc func(context.Context) error

// Setup installs global tracer and logger providers. The returned function
// flushes and stops them.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	level, err := ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}

	switch opts.Exporter {
	case "", ExporterNone:
		handler := slog.NewJSONHandler(opts.Writer, &slog.HandlerOptions{Level: level})
		global.SetLoggerProvider(NewSlogLoggerProvider(handler))
		slog.SetDefault(slog.New(handler))
		return func(context.Context) error { return nil }, nil

	case ExporterStdout:
		return setupStdout(ctx, opts.Writer)

	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
	}
}

func setupStdout(ctx context.Context, w io.Writer) (ShutdownFunc, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	logExporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to create log exporter: %w", err),
			tracerProvider.Shutdown(ctx),
		)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	global.SetLoggerProvider(loggerProvider)

	return func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			loggerProvider.Shutdown(ctx),
		)
	}, nil
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
