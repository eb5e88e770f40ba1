// Package schema renders tool specifications as plain JSON Schema maps for
// prompt embedding, schema compilation, and structured-output requests.
package schema

// Object is the root shape of a tool input schema.
type Object struct {
	Properties map[string]*Property
	Required   []string
}

// Property is one schema node in the structural subset the validator uses.
type Property struct {
	Type        string
	Title       string
	Description string
	Enum        []string
	Properties  map[string]*Property
	Items       *Property
	Required    []string
}

// ConvertToolSpec renders a tool input schema as a JSON Schema document map.
func ConvertToolSpec(title string, obj *Object) map[string]any {
	doc := map[string]any{
		"type": "object",
	}
	if title != "" {
		doc["title"] = title
	}
	if obj == nil {
		return doc
	}
	if props := convertProperties(obj.Properties); props != nil {
		doc["properties"] = props
	}
	if len(obj.Required) > 0 {
		doc["required"] = obj.Required
	}
	return doc
}

// ConvertProperty renders one schema node as a JSON Schema map.
func ConvertProperty(p *Property) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	node := map[string]any{}
	if p.Type != "" {
		node["type"] = p.Type
	}
	if p.Title != "" {
		node["title"] = p.Title
	}
	if p.Description != "" {
		node["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		node["enum"] = p.Enum
	}
	if props := convertProperties(p.Properties); props != nil {
		node["properties"] = props
	}
	if len(p.Required) > 0 {
		node["required"] = p.Required
	}
	if p.Items != nil {
		node["items"] = ConvertProperty(p.Items)
	}
	return node
}

func convertProperties(props map[string]*Property) map[string]any {
	if len(props) == 0 {
		return nil
	}
	converted := make(map[string]any, len(props))
	for name, prop := range props {
		converted[name] = ConvertProperty(prop)
	}
	return converted
}
