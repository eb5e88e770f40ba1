// Package openai adapts the OpenAI chat completion API to the quorum.Invoker
// interface. Structured requests use the JSON-object response format; the
// caller still parses and validates the result.
package openai

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/m-mizutani/quorum"
)

const (
	// DefaultModel is the model used when WithModel is not given.
	DefaultModel = "gpt-4o-mini"
)

// Client is a quorum.Invoker backed by the OpenAI API.
type Client struct {
	client *openai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// baseURL is the custom base URL for the OpenAI API.
	// If empty, uses the default OpenAI API endpoints.
	baseURL string

	temperature float32
	maxTokens   int
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for chat completions.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithBaseURL sets a custom base URL, for OpenAI-compatible endpoints.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTemperature sets the sampling temperature. Reasoner paths typically run
// warm, judges run at zero.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Zero means the model default.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates a new OpenAI client.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("API key is required")
	}

	client := &Client{
		defaultModel: DefaultModel,
	}
	for _, option := range options {
		option(client)
	}

	cfg := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		cfg.BaseURL = client.baseURL
	}
	client.client = openai.NewClientWithConfig(cfg)

	return client, nil
}

// Invoke implements quorum.Invoker.
func (c *Client) Invoke(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.defaultModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion", goerr.V("model", c.defaultModel))
	}
	if len(resp.Choices) == 0 {
		return nil, goerr.New("no choices in chat completion response", goerr.V("model", c.defaultModel))
	}

	return &quorum.Reply{Text: resp.Choices[0].Message.Content}, nil
}
