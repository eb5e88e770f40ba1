// Package claude adapts the Anthropic Messages API to the quorum.Invoker
// interface. The API has no JSON response mode, so structured requests rely on
// prompt discipline plus the caller's JSON extraction.
package claude

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/quorum"
)

const (
	// DefaultModel is the model used when WithModel is not given.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens caps completion length unless WithMaxTokens overrides it.
	DefaultMaxTokens = 4096
)

// Client is a quorum.Invoker backed by the Anthropic API.
type Client struct {
	client anthropic.Client

	// defaultModel is the model to use for message generation.
	// It can be overridden using WithModel option.
	defaultModel string

	maxTokens   int64
	temperature *float64
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for message generation.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.temperature = &temp
	}
}

// New creates a new Anthropic client.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("API key is required")
	}

	client := &Client{
		defaultModel: DefaultModel,
		maxTokens:    DefaultMaxTokens,
	}
	for _, option := range options {
		option(client)
	}

	client.client = anthropic.NewClient(option.WithAPIKey(apiKey))

	return client, nil
}

// Invoke implements quorum.Invoker.
func (c *Client) Invoke(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.defaultModel),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message", goerr.V("model", c.defaultModel))
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, goerr.New("no text content in response", goerr.V("model", c.defaultModel))
	}

	return &quorum.Reply{Text: sb.String()}, nil
}
