package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/Invisible042/multi-ai-user-debates/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	turnCounter, _ = meter.Int64Counter("debate.turns",
		metric.WithDescription("Debate turns dispatched"))
	replyFailureCounter, _ = meter.Int64Counter("debate.reply_failures",
		metric.WithDescription("Replies that could not be dispatched"))
	sessionStartFailureCounter, _ = meter.Int64Counter("debate.session_start_failures",
		metric.WithDescription("Persona sessions that failed to start"))
)
