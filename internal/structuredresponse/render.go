package structuredresponse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ToSnakeCase converts a CamelCase class name to snake_case for the root
// XML tag.
func ToSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// constraintAttrs renders the human-named numeric/length constraint
// attributes.
func constraintAttrs(c Constraints) string {
	var b strings.Builder
	write := func(name string, v *float64) {
		if v != nil {
			fmt.Fprintf(&b, " %s='%s'", name, trimFloat(*v))
		}
	}
	write("greater_or_equal", c.Ge)
	write("greater_than", c.Gt)
	write("less_or_equal", c.Le)
	write("less_than", c.Lt)
	write("multiple_of", c.MultipleOf)
	if c.MinLength != nil {
		fmt.Fprintf(&b, " min_length='%d'", *c.MinLength)
	}
	if c.MaxLength != nil {
		fmt.Fprintf(&b, " max_length='%d'", *c.MaxLength)
	}
	return b.String()
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToPrompt produces the XML-like template used to elicit a typed output
// from a model. The root tag is the snake_case class name.
func (s *Schema) ToPrompt() string {
	var b strings.Builder
	root := ToSnakeCase(s.ClassName)
	b.WriteString("<" + root + " type='dict'>\n")
	for _, name := range s.Root.Order {
		renderNode(&b, name, s.Root.Elements[name], 1)
	}
	b.WriteString("</" + root + ">")
	return b.String()
}

func indent(n int) string { return strings.Repeat(" ", n) }

func renderNode(b *strings.Builder, name string, n *Node, depth int) {
	pad := indent(depth)
	switch n.Type {
	case KindDict:
		fmt.Fprintf(b, "%s<%s type='dict'", pad, name)
		if n.Description != "" {
			fmt.Fprintf(b, " description='%s'", n.Description)
		}
		b.WriteString(">\n")
		for _, child := range n.Order {
			renderNode(b, child, n.Elements[child], depth+1)
		}
		fmt.Fprintf(b, "%s</%s>\n", pad, name)
	case KindList:
		elemType := "dict"
		if n.ListElem != nil && n.ListElem.Type.isLeaf() {
			elemType = string(n.ListElem.Type)
		}
		fmt.Fprintf(b, "%s<%s type='list' elements='%s'", pad, name, elemType)
		if n.Description != "" {
			fmt.Fprintf(b, " description='%s'", n.Description)
		}
		b.WriteString(">\n")
		innerPad := indent(depth + 1)
		fmt.Fprintf(b, "%s<li index='0'>", innerPad)
		if n.ListElem != nil && n.ListElem.Type == KindDict {
			b.WriteString("\n")
			for _, child := range n.ListElem.Order {
				renderNode(b, child, n.ListElem.Elements[child], depth+2)
			}
			fmt.Fprintf(b, "%s</li>\n", innerPad)
		} else if n.ListElem != nil {
			fmt.Fprintf(b, "[value here - as a %s]</li>\n", n.ListElem.Type)
		} else {
			b.WriteString("</li>\n")
		}
		fmt.Fprintf(b, "%s...\n", innerPad)
		fmt.Fprintf(b, "%s</%s>\n", pad, name)
	default: // leaf
		fmt.Fprintf(b, "%s<%s type='%s'", pad, name, n.Type)
		if n.Type == KindEnum {
			choices, _ := json.Marshal(n.Choices)
			fmt.Fprintf(b, " choices='%s'", string(choices))
		}
		b.WriteString(constraintAttrs(n.Constraints))
		b.WriteString(">")
		if n.Description != "" {
			fmt.Fprintf(b, "[%s - as a %s]", n.Description, n.Type)
		} else {
			fmt.Fprintf(b, "[value here - as a %s]", n.Type)
		}
		fmt.Fprintf(b, "</%s>\n", name)
	}
}

// RenderInstance renders a populated instance tree as the canonical data
// XML (as opposed to ToPrompt's template-with-placeholders). The round-trip
// law is: FromPrompt(schema, RenderInstance(schema, instance))
// reproduces instance modulo float precision.
func RenderInstance(s *Schema, instance map[string]any) string {
	var b strings.Builder
	root := ToSnakeCase(s.ClassName)
	b.WriteString("<" + root + ">")
	renderInstanceDict(&b, s.Root, instance)
	b.WriteString("</" + root + ">")
	return b.String()
}

func renderInstanceDict(b *strings.Builder, node *Node, instance map[string]any) {
	for _, name := range node.Order {
		child := node.Elements[name]
		v := instance[name]
		renderInstanceValue(b, name, child, v)
	}
}

func renderInstanceValue(b *strings.Builder, name string, node *Node, v any) {
	if v == nil {
		fmt.Fprintf(b, "<%s></%s>", name, name)
		return
	}
	switch node.Type {
	case KindDict:
		fmt.Fprintf(b, "<%s>", name)
		if m, ok := v.(map[string]any); ok {
			renderInstanceDict(b, node, m)
		}
		fmt.Fprintf(b, "</%s>", name)
	case KindList:
		fmt.Fprintf(b, "<%s>", name)
		if items, ok := v.([]any); ok {
			for i, item := range items {
				fmt.Fprintf(b, "<li index='%d'>", i)
				if node.ListElem != nil && node.ListElem.Type == KindDict {
					if m, ok := item.(map[string]any); ok {
						renderInstanceDict(b, node.ListElem, m)
					}
				} else {
					b.WriteString(renderScalar(item))
				}
				b.WriteString("</li>")
			}
		}
		fmt.Fprintf(b, "</%s>", name)
	default:
		fmt.Fprintf(b, "<%s>%s</%s>", name, renderScalar(v), name)
	}
}

func renderScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return trimFloat(t)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
