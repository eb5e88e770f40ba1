package quorum

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/m-mizutani/quorum/internal/schema"
)

// ParameterType is the declared type of a tool argument.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
	TypeNull    ParameterType = "null"
)

// Parameter describes one tool argument. Only the structural subset
// (type, required, properties) participates in argument validation; the rest
// is surfaced to the reasoner through the tools block of the prompt.
type Parameter struct {
	Title       string
	Type        ParameterType
	Description string
	Enum        []string
	Properties  map[string]*Parameter
	Items       *Parameter
	Required    []string
}

// ToolSpec is the contract a tool exposes: a unique name, a description for
// the reasoner, and the input schema its arguments must satisfy.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]*Parameter
	Required    []string
}

// Validate checks the specification itself. Beyond the basic name check, the
// rendered JSON Schema is compiled with santhosh-tekuri/jsonschema so a
// malformed declaration fails at registration instead of mid-run.
func (s *ToolSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("tool", s.Name))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidTool, "name is required")
	}

	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return eb.Wrap(ErrInvalidTool, "required key not found in parameters", goerr.V("key", req))
		}
	}

	raw, err := json.Marshal(schema.ConvertToolSpec(s.Name, convertParameters(s)))
	if err != nil {
		return eb.Wrap(ErrInvalidTool, "failed to render input schema")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return eb.Wrap(ErrInvalidTool, "failed to reload input schema")
	}

	compiler := jsonschema.NewCompiler()
	resource := s.Name + ".json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return eb.Wrap(ErrInvalidTool, "failed to register input schema")
	}
	if _, err := compiler.Compile(resource); err != nil {
		return eb.Wrap(ErrInvalidTool, "input schema does not compile", goerr.V("cause", err.Error()))
	}

	return nil
}

// SchemaJSON renders the input schema as a JSON string for prompt embedding.
func (s *ToolSpec) SchemaJSON() string {
	return stableJSON(schema.ConvertToolSpec(s.Name, convertParameters(s)))
}

func convertParameters(s *ToolSpec) *schema.Object {
	return &schema.Object{
		Properties: convertProperties(s.Parameters),
		Required:   s.Required,
	}
}

func convertProperties(params map[string]*Parameter) map[string]*schema.Property {
	if params == nil {
		return nil
	}
	props := make(map[string]*schema.Property, len(params))
	for name, p := range params {
		props[name] = convertProperty(p)
	}
	return props
}

func convertProperty(p *Parameter) *schema.Property {
	if p == nil {
		return nil
	}
	prop := &schema.Property{
		Type:        string(p.Type),
		Title:       p.Title,
		Description: p.Description,
		Enum:        p.Enum,
		Required:    p.Required,
		Properties:  convertProperties(p.Properties),
	}
	if p.Items != nil {
		prop.Items = convertProperty(p.Items)
	}
	return prop
}

// Tool is the specification and execution of an action the judge can commit
// to. Run may return any JSON-compatible value; errors do not abort the run
// but become observations (or reflection input) for the next step.
type Tool interface {
	Spec() *ToolSpec
	Run(ctx context.Context, args map[string]any) (any, error)
}

// ToolSource provides tools discovered at run start, such as an MCP server.
type ToolSource interface {
	Tools(ctx context.Context) ([]Tool, error)
}

type toolWrapper struct {
	spec *ToolSpec
	run  func(ctx context.Context, args map[string]any) (any, error)
}

func (x *toolWrapper) Spec() *ToolSpec {
	return x.spec
}

func (x *toolWrapper) Run(ctx context.Context, args map[string]any) (any, error) {
	return x.run(ctx, args)
}

type toolRegistry struct {
	tools map[string]Tool
	order []string
}

func newToolRegistry(ctx context.Context, tools []Tool, sources []ToolSource) (*toolRegistry, error) {
	reg := &toolRegistry{tools: map[string]Tool{}}

	add := func(tool Tool) error {
		spec := tool.Spec()
		if err := spec.Validate(); err != nil {
			return err
		}
		if _, ok := reg.tools[spec.Name]; ok {
			return goerr.Wrap(ErrToolNameConflict, "tool already registered", goerr.V("tool_name", spec.Name))
		}
		reg.tools[spec.Name] = tool
		reg.order = append(reg.order, spec.Name)
		return nil
	}

	for _, tool := range tools {
		if err := add(tool); err != nil {
			return nil, err
		}
	}

	for _, source := range sources {
		discovered, err := source.Tools(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load tools from source")
		}
		for _, tool := range discovered {
			if err := add(tool); err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}

func (x *toolRegistry) get(name string) (Tool, bool) {
	tool, ok := x.tools[name]
	return tool, ok
}

func (x *toolRegistry) specs() []*ToolSpec {
	specs := make([]*ToolSpec, 0, len(x.order))
	for _, name := range x.order {
		specs = append(specs, x.tools[name].Spec())
	}
	return specs
}
