package openai

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/Invisible042/multi-ai-user-debates/core/llms/openai"

var tracer = otel.Tracer(scopeName)
