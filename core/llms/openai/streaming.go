package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Invisible042/multi-ai-user-debates/core/llms"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PromptWithStream prepares a streaming completion. Nothing is sent until
// the returned stream's chunks are ranged over.
func (c *Client) PromptWithStream(_ context.Context, opts ...llms.PromptOption) llms.Stream {
	request := c.newRequest(llms.NewPromptOptions(opts...))
	request.Stream = true
	return &Stream{client: c.client, request: request}
}

type Stream struct {
	client  *goopenai.Client
	request goopenai.ChatCompletionRequest
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream llm", trace.WithAttributes(attribute.String("llm.model", s.request.Model)))
		defer span.End()

		stream, err := s.client.CreateChatCompletionStream(ctx, s.request)
		if err != nil {
			err = fmt.Errorf("failed to create chat completion stream: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(llms.StreamChunk{}, err)
			return
		}
		defer stream.Close()

		chunks := 0
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				span.SetAttributes(attribute.Int("llm.stream.chunks", chunks))
				return
			} else if err != nil {
				err = fmt.Errorf("failed to receive chunk: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield(llms.StreamChunk{}, err)
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]
			chunk := llms.StreamChunk{
				Content:      choice.Delta.Content,
				FinishReason: string(choice.FinishReason),
			}
			if chunk.Content == "" && chunk.FinishReason == "" {
				continue
			}

			chunks++
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
