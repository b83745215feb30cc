package structuredresponse

import "encoding/json"

// WireRecord is the flat record schemas-with-instance are serialized to for
// transport between client and core.
type WireRecord struct {
	ClassName  string         `json:"class_name"`
	Definition map[string]any `json:"definition"`
	Instance   map[string]any `json:"instance,omitempty"`
	Native     bool           `json:"native"`
}

// ToWire flattens the schema (and an optional instance) into the wire
// record shape.
func (s *Schema) ToWire(instance map[string]any) WireRecord {
	return WireRecord{
		ClassName:  s.ClassName,
		Definition: nodeToWire(s.Root).(map[string]any)["elements"].(map[string]any),
		Instance:   instance,
		Native:     s.Native,
	}
}

// MarshalJSON serializes a schema (without instance) to the wire shape.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToWire(nil))
}

func nodeToWire(n *Node) any {
	m := map[string]any{"type": string(n.Type)}
	if n.Description != "" {
		m["description"] = n.Description
	}
	switch n.Type {
	case KindDict:
		elements := map[string]any{}
		for _, name := range n.Order {
			elements[name] = nodeToWire(n.Elements[name])
		}
		m["elements"] = elements
	case KindList:
		if n.ListElem != nil && n.ListElem.Type == KindDict {
			elements := map[string]any{}
			for _, name := range n.ListElem.Order {
				elements[name] = nodeToWire(n.ListElem.Elements[name])
			}
			m["elements"] = elements
		} else if n.ListElem != nil {
			m["elements"] = string(n.ListElem.Type)
		}
	case KindEnum:
		m["choices"] = n.Choices
	}
	addConstraints(m, n.Constraints)
	return m
}

func addConstraints(m map[string]any, c Constraints) {
	if c.Ge != nil {
		m["ge"] = *c.Ge
	}
	if c.Gt != nil {
		m["gt"] = *c.Gt
	}
	if c.Le != nil {
		m["le"] = *c.Le
	}
	if c.Lt != nil {
		m["lt"] = *c.Lt
	}
	if c.MultipleOf != nil {
		m["multiple_of"] = *c.MultipleOf
	}
	if c.MinLength != nil {
		m["min_length"] = *c.MinLength
	}
	if c.MaxLength != nil {
		m["max_length"] = *c.MaxLength
	}
}

// FromWire reconstructs a Schema (and any carried instance) from a wire
// record, e.g. as received over the HTTP boundary.
func FromWire(rec WireRecord) (*Schema, map[string]any, error) {
	s := &Schema{ClassName: rec.ClassName, Native: rec.Native, Root: &Node{Type: KindDict, Elements: map[string]*Node{}}}
	for name, raw := range rec.Definition {
		node, err := nodeFromWire(raw)
		if err != nil {
			return nil, nil, err
		}
		s.Root.Elements[name] = node
		s.Root.Order = append(s.Root.Order, name)
	}
	return s, rec.Instance, nil
}

func nodeFromWire(raw any) (*Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return &Node{Type: KindStr}, nil
	}
	n := &Node{Type: Kind(asString(m["type"])), Description: asString(m["description"])}
	if ge, ok := m["ge"].(float64); ok {
		n.Constraints.Ge = &ge
	}
	if gt, ok := m["gt"].(float64); ok {
		n.Constraints.Gt = &gt
	}
	if le, ok := m["le"].(float64); ok {
		n.Constraints.Le = &le
	}
	if lt, ok := m["lt"].(float64); ok {
		n.Constraints.Lt = &lt
	}
	if mo, ok := m["multiple_of"].(float64); ok {
		n.Constraints.MultipleOf = &mo
	}
	if ml, ok := m["min_length"].(float64); ok {
		v := int(ml)
		n.Constraints.MinLength = &v
	}
	if ml, ok := m["max_length"].(float64); ok {
		v := int(ml)
		n.Constraints.MaxLength = &v
	}
	if n.Type == KindEnum {
		if choices, ok := m["choices"].([]any); ok {
			for _, c := range choices {
				n.Choices = append(n.Choices, asString(c))
			}
		}
	}
	switch n.Type {
	case KindDict:
		n.Elements = map[string]*Node{}
		elements, _ := m["elements"].(map[string]any)
		for name, raw := range elements {
			child, err := nodeFromWire(raw)
			if err != nil {
				return nil, err
			}
			n.Elements[name] = child
			n.Order = append(n.Order, name)
		}
	case KindList:
		switch elements := m["elements"].(type) {
		case string:
			n.ListElem = &Node{Type: Kind(elements)}
		case map[string]any:
			elemNode := &Node{Type: KindDict, Elements: map[string]*Node{}}
			for name, raw := range elements {
				child, err := nodeFromWire(raw)
				if err != nil {
					return nil, err
				}
				elemNode.Elements[name] = child
				elemNode.Order = append(elemNode.Order, name)
			}
			n.ListElem = elemNode
		}
	}
	return n, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
