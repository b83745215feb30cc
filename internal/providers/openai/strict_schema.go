package openai

import "github.com/llmgate/llmgate/internal/structuredresponse"

// strictJSONSchema converts a structured-response definition tree into an
// OpenAI strict JSON schema: additionalProperties=false at every object,
// every property required, ported from the original source's
// core/providers/oai.py `_ensure_strict_json_schema`. There is no `$ref` to resolve here since
// this tree has no shared/recursive type definitions (_resolve_ref in the
// original exists to inline Pydantic's `$defs`-based sibling references,
// which this tree never produces), so inlining happens implicitly by
// always recursing into owned sub-nodes rather than emitting refs.
func strictJSONSchema(n *structuredresponse.Node) map[string]any {
	switch n.Type {
	case structuredresponse.KindDict:
		props := map[string]any{}
		required := make([]string, 0, len(n.Order))
		for _, name := range n.Order {
			props[name] = strictJSONSchema(n.Elements[name])
			required = append(required, name)
		}
		schema := map[string]any{
			"type": "object",
			"properties": props,
			"required": required,
			"additionalProperties": false,
		}
		if n.Description != "" {
			schema["description"] = n.Description
		}
		return schema
	case structuredresponse.KindList:
		var items map[string]any
		if n.ListElem != nil {
			items = strictJSONSchema(n.ListElem)
		} else {
			items = map[string]any{"type": "string"}
		}
		schema := map[string]any{"type": "array", "items": items}
		if n.Description != "" {
			schema["description"] = n.Description
		}
		return schema
	case structuredresponse.KindEnum:
		schema := map[string]any{"type": "string", "enum": n.Choices}
		addDescription(schema, n)
		return schema
	case structuredresponse.KindInt:
		schema := map[string]any{"type": "integer"}
		addNumericConstraints(schema, n)
		addDescription(schema, n)
		return schema
	case structuredresponse.KindFloat:
		schema := map[string]any{"type": "number"}
		addNumericConstraints(schema, n)
		addDescription(schema, n)
		return schema
	case structuredresponse.KindBool:
		schema := map[string]any{"type": "boolean"}
		addDescription(schema, n)
		return schema
	default: // str
		schema := map[string]any{"type": "string"}
		if n.Constraints.MinLength != nil {
			schema["minLength"] = *n.Constraints.MinLength
		}
		if n.Constraints.MaxLength != nil {
			schema["maxLength"] = *n.Constraints.MaxLength
		}
		addDescription(schema, n)
		return schema
	}
}

func addDescription(schema map[string]any, n *structuredresponse.Node) {
	if n.Description != "" {
		schema["description"] = n.Description
	}
}

func addNumericConstraints(schema map[string]any, n *structuredresponse.Node) {
	c := n.Constraints
	if c.Ge != nil {
		schema["minimum"] = *c.Ge
	}
	if c.Gt != nil {
		schema["exclusiveMinimum"] = *c.Gt
	}
	if c.Le != nil {
		schema["maximum"] = *c.Le
	}
	if c.Lt != nil {
		schema["exclusiveMaximum"] = *c.Lt
	}
	if c.MultipleOf != nil {
		schema["multipleOf"] = *c.MultipleOf
	}
}
