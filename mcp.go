package quorum

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient exposes the tools of an MCP server as a ToolSource. Tools are
// listed lazily at Run start, so a reconnecting agent always sees the server's
// current tool set.
type MCPClient struct {
	// For local MCP server
	path    string
	args    []string
	envVars []string

	// For remote MCP server
	baseURL string
	headers map[string]string

	client     *client.Client
	initResult *mcp.InitializeResult

	initMutex sync.Mutex
}

// MCPStdioOption is the option for a local MCP executable server via stdio.
type MCPStdioOption func(*MCPClient)

// WithEnvVars appends environment variables passed to the MCP server process.
func WithEnvVars(envVars []string) MCPStdioOption {
	return func(m *MCPClient) {
		m.envVars = append(m.envVars, envVars...)
	}
}

// NewStdioMCP creates an MCP client for a local executable server via stdio.
func NewStdioMCP(ctx context.Context, path string, args []string, options ...MCPStdioOption) (*MCPClient, error) {
	c := &MCPClient{
		path: path,
		args: args,
	}
	for _, option := range options {
		option(c)
	}

	if err := c.start(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// MCPSSEOption is the option for a remote MCP server via HTTP SSE.
type MCPSSEOption func(*MCPClient)

// WithHeaders replaces the HTTP headers sent to the MCP server.
func WithHeaders(headers map[string]string) MCPSSEOption {
	return func(m *MCPClient) {
		m.headers = headers
	}
}

// NewSSEMCP creates an MCP client for a remote server via HTTP SSE.
func NewSSEMCP(ctx context.Context, baseURL string, options ...MCPSSEOption) (*MCPClient, error) {
	c := &MCPClient{
		baseURL: baseURL,
	}
	for _, option := range options {
		option(c)
	}

	if err := c.start(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *MCPClient) start(ctx context.Context) error {
	c.initMutex.Lock()
	defer c.initMutex.Unlock()

	if c.initResult != nil {
		return nil
	}

	var tp transport.Interface
	if c.path != "" {
		tp = transport.NewStdio(c.path, c.envVars, c.args...)
	}

	if c.baseURL != "" {
		sse, err := transport.NewSSE(c.baseURL, transport.WithHeaders(c.headers))
		if err != nil {
			return goerr.Wrap(err, "failed to create SSE transport")
		}
		tp = sse
	}

	if tp == nil {
		return goerr.New("no transport")
	}

	c.client = client.NewClient(tp)

	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP client")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "quorum",
		Version: "0.0.1",
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp

	return nil
}

// Tools implements ToolSource.
func (c *MCPClient) Tools(ctx context.Context) ([]Tool, error) {
	logger := LoggerFromContext(ctx)

	listed, err := c.listTools(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list MCP tools")
	}

	tools := make([]Tool, 0, len(listed))
	names := make([]string, 0, len(listed))
	for _, t := range listed {
		wrapped, err := wrapMCPTool(c, t)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert MCP tool", goerr.V("tool.name", t.Name))
		}
		tools = append(tools, wrapped)
		names = append(names, t.Name)
	}

	logger.Debug("found MCP tools", "names", names)

	return tools, nil
}

func (c *MCPClient) listTools(ctx context.Context) ([]mcp.Tool, error) {
	if c.initResult == nil {
		return nil, goerr.New("MCP client not initialized")
	}

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}

	return resp.Tools, nil
}

func (c *MCPClient) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.initResult == nil {
		return nil, goerr.New("MCP client not initialized")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool")
	}

	return resp, nil
}

// Close shuts down the underlying MCP session.
func (c *MCPClient) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

func wrapMCPTool(c *MCPClient, tool mcp.Tool) (Tool, error) {
	parameters, err := inputSchemaToParameters(tool.InputSchema)
	if err != nil {
		return nil, err
	}

	return &toolWrapper{
		spec: &ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  parameters,
			Required:    tool.InputSchema.Required,
		},
		run: func(ctx context.Context, args map[string]any) (any, error) {
			resp, err := c.callTool(ctx, tool.Name, args)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to call tool")
			}
			return mcpContentToMap(resp.Content), nil
		},
	}, nil
}

func valueOrEmpty[T any](v any) T {
	var empty T
	if v == nil {
		return empty
	}
	if v, ok := v.(T); ok {
		return v
	}
	return empty
}

func inputSchemaToParameters(inputSchema mcp.ToolInputSchema) (map[string]*Parameter, error) {
	parameters := map[string]*Parameter{}

	for name, property := range inputSchema.Properties {
		prop, ok := property.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidTool, "invalid MCP property", goerr.V("property", property))
		}

		parameter, err := propertyToParameter(name, prop)
		if err != nil {
			return nil, err
		}
		parameters[name] = parameter
	}

	return parameters, nil
}

func propertyToParameter(name string, prop map[string]any) (*Parameter, error) {
	var properties map[string]*Parameter
	var items *Parameter
	propType := valueOrEmpty[string](prop["type"])

	if propType == "object" {
		properties = map[string]*Parameter{}
		nested := valueOrEmpty[map[string]any](prop["properties"])

		for k, v := range nested {
			child, ok := v.(map[string]any)
			if !ok {
				return nil, goerr.Wrap(ErrInvalidTool, "invalid nested MCP property", goerr.V("property", k))
			}
			objParam, err := propertyToParameter(k, child)
			if err != nil {
				return nil, err
			}
			properties[k] = objParam
		}
	}

	if propType == "array" {
		child, ok := prop["items"].(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidTool, "array MCP property without items", goerr.V("property", name))
		}
		v, err := propertyToParameter(name, child)
		if err != nil {
			return nil, err
		}
		items = v
	}

	return &Parameter{
		Type:        ParameterType(propType),
		Title:       valueOrEmpty[string](prop["title"]),
		Description: valueOrEmpty[string](prop["description"]),
		Enum:        stringSlice(prop["enum"]),
		Required:    stringSlice(prop["required"]),
		Properties:  properties,
		Items:       items,
	}, nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

func mcpContentToMap(contents []mcp.Content) map[string]any {
	for _, c := range contents {
		txt, ok := mcp.AsTextContent(c)
		if !ok {
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(txt.Text), &v); err == nil {
			if mapData, ok := v.(map[string]any); ok {
				return mapData
			}
			return map[string]any{
				"result": v,
			}
		}

		return map[string]any{
			"result": txt.Text,
		}
	}

	// No text content found
	return map[string]any{}
}
