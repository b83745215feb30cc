// Package structuredresponse implements the XML-like structured-response
// engine: schema construction, prompt rendering, and tolerant
// parsing of best-effort LLM output into a typed instance tree.
//
// The engine has three parts: schema construction (this file and
// fromstruct.go), prompt rendering (render.go), and output parsing
// (parse.go). The wire contract is the dynamic Schema tree; FromStruct is a
// compile-time convenience layered on top that produces the same tree.
package structuredresponse

import (
	"fmt"
	"strings"
)

// Kind is the closed set of node types a schema definition tree may use.
type Kind string

const (
	KindStr   Kind = "str"
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
	KindEnum  Kind = "enum"
	KindDict  Kind = "dict"
	KindList  Kind = "list"
)

func (k Kind) isLeaf() bool {
	switch k {
	case KindStr, KindInt, KindFloat, KindBool, KindEnum:
		return true
	}
	return false
}

// forbiddenFieldNames collide with the rendered schema's own attribute/tag
// vocabulary and so are rejected in AddNode.
var forbiddenFieldNames = map[string]bool{
	"type": true, "description": true, "elements": true, "choices": true,
	"int": true, "float": true, "bool": true, "dict": true, "enum": true,
	"list": true, "item": true,
}

// Constraints are the numeric/length constraints recognized on leaf nodes.
type Constraints struct {
	Ge         *float64
	Gt         *float64
	Le         *float64
	Lt         *float64
	MultipleOf *float64
	MinLength  *int
	MaxLength  *int
}

// Node is one element of a schema definition tree: a leaf, a dict, or a
// list. Dict fields are kept in both a map (lookup) and an explicit order
// slice (rendering/parsing order, and so two schemas built the same way
// compare equal).
type Node struct {
	Type        Kind
	Description string
	Constraints Constraints
	Choices     []string // enum leaves only

	Elements map[string]*Node // dict children, keyed by field name
	Order    []string         // dict field order

	ListElem *Node // list element schema: a leaf node or a dict node
}

// Schema is a class_name plus a definition tree. Native is carried through
// the wire record (ToWire/FromWire); no adapter reads it when choosing a
// vendor-native JSON-schema path.
type Schema struct {
	ClassName string
	Root      *Node
	Native    bool
}

// New creates an empty schema with an empty dict root.
func New(className string) *Schema {
	return &Schema{
		ClassName: className,
		Root:      &Node{Type: KindDict, Elements: map[string]*Node{}},
	}
}

// NodeOpts carries the optional attributes for AddNode.
type NodeOpts struct {
	Description                string
	Ge, Gt, Le, Lt, MultipleOf *float64
	MinLength, MaxLength       *int
	Choices                    []string
	// ListElemKind names the element type for a primitive-element list.
	// Leave empty to build a dict-element list (children added later via
	// dotted paths that descend through this list).
	ListElemKind Kind
}

// AddNode builds up the schema programmatically. path is a dot-separated
// field path walking through dict and list-of-dict parents; for lists the
// cursor descends into the element schema.
func (s *Schema) AddNode(path string, typ Kind, opts NodeOpts) error {
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if forbiddenFieldNames[seg] {
			return fmt.Errorf("structuredresponse: field name %q is reserved", seg)
		}
		if seg == "" {
			return fmt.Errorf("structuredresponse: empty path segment in %q", path)
		}
	}

	cur := s.Root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := cur.Elements[seg]
		if !ok {
			return fmt.Errorf("structuredresponse: parent path segment %q not found (path %q)", seg, path)
		}
		switch child.Type {
		case KindDict:
			cur = child
		case KindList:
			if child.ListElem == nil {
				child.ListElem = &Node{Type: KindDict, Elements: map[string]*Node{}}
			}
			if child.ListElem.Type != KindDict {
				return fmt.Errorf("structuredresponse: cannot descend into primitive-element list at %q", seg)
			}
			cur = child.ListElem
		default:
			return fmt.Errorf("structuredresponse: cannot descend into leaf field %q", seg)
		}
	}

	name := segments[len(segments)-1]
	node := &Node{
		Type:        typ,
		Description: opts.Description,
		Constraints: Constraints{
			Ge: opts.Ge, Gt: opts.Gt, Le: opts.Le, Lt: opts.Lt,
			MultipleOf: opts.MultipleOf, MinLength: opts.MinLength, MaxLength: opts.MaxLength,
		},
		Choices: opts.Choices,
	}
	if typ == KindList {
		if opts.ListElemKind != "" {
			node.ListElem = &Node{Type: opts.ListElemKind}
		}
		// else: dict-element list, lazily built when a child path descends into it.
	}

	if cur.Elements == nil {
		cur.Elements = map[string]*Node{}
	}
	if _, exists := cur.Elements[name]; !exists {
		cur.Order = append(cur.Order, name)
	}
	cur.Elements[name] = node
	return nil
}
