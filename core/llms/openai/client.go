package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Invisible042/multi-ai-user-debates/core/llms"
	"github.com/Invisible042/multi-ai-user-debates/internal/utils"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultModel = "gpt-4o-mini"

	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenRouterModel   = "mistralai/mistral-small-3.2-24b-instruct:free"
)

var ErrEmptyResponse = errors.New("llm returned no choices")

// Client talks to the chat completions API of OpenAI or any compatible
// provider (OpenRouter) selected through the base URL.
type Client struct {
	client *goopenai.Client
	model  string
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

// WithBaseURL points the client at an OpenAI compatible API.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = httpClient }
}

// WithOpenRouter configures the OpenRouter endpoint and its default model.
func WithOpenRouter() ClientOption {
	return func(o *clientOptions) {
		o.baseURL = OpenRouterBaseURL
		o.model = OpenRouterModel
	}
}

func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	options := clientOptions{
		model:      DefaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(&options)
	}

	config := goopenai.DefaultConfig(apiKey)
	if options.baseURL != "" {
		config.BaseURL = options.baseURL
	}
	config.HTTPClient = options.httpClient

	return &Client{
		client: goopenai.NewClientWithConfig(config),
		model:  options.model,
	}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm", trace.WithAttributes(attribute.String("llm.model", c.model)))
	defer span.End()

	request := c.newRequest(llms.NewPromptOptions(opts...))
	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		err = fmt.Errorf("failed to create chat completion: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(response.Choices) == 0 {
		span.RecordError(ErrEmptyResponse)
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return nil, ErrEmptyResponse
	}

	choice := response.Choices[0]
	span.SetAttributes(
		attribute.Int("llm.usage.input_tokens", response.Usage.PromptTokens),
		attribute.Int("llm.usage.output_tokens", response.Usage.CompletionTokens),
	)

	return &llms.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llms.Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
			TotalTokens:  response.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) newRequest(options llms.PromptOptions) goopenai.ChatCompletionRequest {
	request := goopenai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  toChatMessages(options.Instructions, options.Messages),
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		request.Temperature = *options.Temperature
	}
	return request
}

func toChatMessages(instructions string, messages []llms.Message) []goopenai.ChatCompletionMessage {
	chatMessages := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if instructions != "" {
		chatMessages = append(chatMessages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, message := range messages {
		chatMessage := goopenai.ChatCompletionMessage{Content: message.Content}
		switch message.Role {
		case llms.RoleSystem:
			chatMessage.Role = goopenai.ChatMessageRoleSystem
		case llms.RoleAssistant:
			chatMessage.Role = goopenai.ChatMessageRoleAssistant
		default:
			chatMessage.Role = goopenai.ChatMessageRoleUser
		}
		// API restricts names to [a-zA-Z0-9_-]
		if message.Name != "" {
			chatMessage.Name = utils.Slug(message.Name)
		}
		chatMessages = append(chatMessages, chatMessage)
	}

	return chatMessages
}
