// Package gemini adapts Gemini models on Vertex AI to the quorum.Invoker
// interface via the google.golang.org/genai SDK. Structured requests switch
// the response MIME type to JSON.
package gemini

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/m-mizutani/quorum"
)

const (
	// DefaultModel is the model used when WithModel is not given.
	DefaultModel = "gemini-2.0-flash"
)

// Client is a quorum.Invoker backed by Gemini on Vertex AI.
type Client struct {
	client *genai.Client

	projectID string
	location  string

	// defaultModel is the model to use for content generation.
	// It can be overridden using WithModel option.
	defaultModel string

	temperature *float32
	maxTokens   int32
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for content generation.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.temperature = &temp
	}
}

// WithMaxTokens caps the completion length. Zero means the model default.
func WithMaxTokens(n int32) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates a new Gemini client for the Vertex AI backend. Credentials come
// from Application Default Credentials.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("projectID is required")
	}
	if location == "" {
		return nil, goerr.New("location is required")
	}

	client := &Client{
		projectID:    projectID,
		location:     location,
		defaultModel: DefaultModel,
	}
	for _, option := range options {
		option(client)
	}

	config := &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}

	newClient, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	client.client = newClient

	return client, nil
}

// Invoke implements quorum.Invoker.
func (c *Client) Invoke(ctx context.Context, req quorum.Request) (*quorum.Reply, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Role: "system",
			Parts: []*genai.Part{
				{Text: req.System},
			},
		}
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
	}
	if c.temperature != nil {
		config.Temperature = c.temperature
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: req.User},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.defaultModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", c.defaultModel))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.New("no candidates in response", goerr.V("model", c.defaultModel))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, goerr.New("no text content in response", goerr.V("model", c.defaultModel))
	}

	return &quorum.Reply{Text: sb.String()}, nil
}
