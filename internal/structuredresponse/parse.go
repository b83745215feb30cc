package structuredresponse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/llmgate/llmgate/internal/errs"
)

// FromPrompt parses raw model text into an instance tree shaped like the
// schema's definition). It is deliberately tolerant: it
// locates the outermost root span, ignores prose around it, skips unknown
// children, and nulls out missing declared fields. Only type-coercion
// failures on declared fields raise a structured-response error — the
// parser never calls a strict XML validator.
func FromPrompt(s *Schema, text string) (map[string]any, error) {
	root := ToSnakeCase(s.ClassName)

	openRe := regexp.MustCompile(`<` + regexp.QuoteMeta(root) + `\b[^<>]*?>`)
	openLoc := openRe.FindStringIndex(text)
	if openLoc == nil {
		return nil, errs.NewStructuredResponse(text, s.ClassName, nil)
	}

	closeTag := "</" + root + ">"
	closeIdx := strings.LastIndex(text, closeTag)
	var content string
	if closeIdx == -1 || closeIdx < openLoc[1] {
		// No closing tag found (or it precedes the opener): tolerate by
		// taking everything after the root opener as its content.
		content = text[openLoc[1]:]
	} else {
		content = text[openLoc[1]:closeIdx]
	}

	out, err := parseDict(content, s.Root)
	if err != nil {
		return nil, errs.NewStructuredResponse(text, s.ClassName, err)
	}
	return out, nil
}

// FromJSON decodes raw model text as JSON and coerces it into an instance
// tree shaped like the schema's definition, the same instance shape
// FromPrompt produces from XML-ish text. It is used for vendor-native
// structured-output paths where the model returns a JSON object directly
// instead of the tagged prompt format.
func FromJSON(s *Schema, text string) (map[string]any, error) {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errs.NewStructuredResponse(text, s.ClassName, err)
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, errs.NewStructuredResponse(text, s.ClassName, fmt.Errorf("native json root is not an object"))
	}
	out, err := coerceJSONDict(root, s.Root)
	if err != nil {
		return nil, errs.NewStructuredResponse(text, s.ClassName, err)
	}
	return out, nil
}

func coerceJSONDict(raw map[string]any, node *Node) (map[string]any, error) {
	out := make(map[string]any, len(node.Order))
	for _, name := range node.Order {
		child := node.Elements[name]
		v, ok := raw[name]
		if !ok {
			out[name] = nil
			continue
		}
		coerced, err := coerceJSONValue(v, child)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}
	return out, nil
}

func coerceJSONValue(v any, node *Node) (any, error) {
	switch node.Type {
	case KindDict:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected object for field of kind dict")
		}
		return coerceJSONDict(m, node)
	case KindList:
		items, ok := v.([]any)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected array for field of kind list")
		}
		elem := node.ListElem
		if elem == nil {
			elem = &Node{Type: KindStr}
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			coerced, err := coerceJSONValue(it, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, coerced)
		}
		return out, nil
	case KindInt:
		f, ok := v.(float64)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected number for field of kind int")
		}
		return int(f), nil
	case KindFloat:
		f, ok := v.(float64)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected number for field of kind float")
		}
		return f, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected bool for field of kind bool")
		}
		return b, nil
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected string for field of kind enum")
		}
		return s, nil
	default: // str
		s, ok := v.(string)
		if !ok {
			return nil, errs.New(errs.StructuredResponse, "expected string for field of kind str")
		}
		return s, nil
	}
}

func parseDict(content string, node *Node) (map[string]any, error) {
	bodies := splitDictChildren(content, node.Order)
	out := make(map[string]any, len(node.Order))
	for _, name := range node.Order {
		child := node.Elements[name]
		body, ok := bodies[name]
		if !ok {
			out[name] = nil
			continue
		}
		v, err := parseValue(body, child)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func parseValue(body string, node *Node) (any, error) {
	switch node.Type {
	case KindDict:
		return parseDict(body, node)
	case KindList:
		return parseList(body, node)
	case KindInt:
		trimmed := strings.TrimSpace(body)
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, errs.New(errs.StructuredResponse, "cannot parse %q as int", trimmed)
		}
		return n, nil
	case KindFloat:
		trimmed := strings.TrimSpace(body)
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, errs.New(errs.StructuredResponse, "cannot parse %q as float", trimmed)
		}
		return f, nil
	case KindBool:
		return coerceBool(strings.TrimSpace(body)), nil
	case KindEnum:
		return strings.TrimSpace(body), nil
	default: // str
		return strings.TrimSpace(body), nil
	}
}

// coerceBool implements (iii) rule 7: "true"/"1" -> true,
// "false"/"0" -> false, any other non-empty string is truthy.
func coerceBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1":
		return true
	case "false", "0", "":
		return false
	default:
		return true
	}
}

func parseList(body string, node *Node) ([]any, error) {
	items := extractLiElements(body)
	out := make([]any, 0, len(items))
	for _, it := range items {
		var elem *Node
		if node.ListElem != nil {
			elem = node.ListElem
		} else {
			elem = &Node{Type: KindStr}
		}
		v, err := parseValue(it, elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// extractLiElements walks body with a depth counter over <li>/</li> tags so
// that a <li> nested inside another <li>'s text body is preserved as
// literal content of the outer item rather than split out as its own
// sibling.
var liTagRe = regexp.MustCompile(`</?li(?:\s[^<>]*?)?/?>`)

func extractLiElements(body string) []string {
	var items []string
	depth := 0
	start := 0
	for _, m := range liTagRe.FindAllStringIndex(body, -1) {
		tag := body[m[0]:m[1]]
		isClose := strings.HasPrefix(tag, "</")
		isSelf := !isClose && strings.HasSuffix(tag, "/>")
		switch {
		case isSelf:
			if depth == 0 {
				items = append(items, "")
			}
		case isClose:
			if depth > 0 {
				depth--
				if depth == 0 {
					items = append(items, body[start:m[0]])
				}
			}
		default: // open
			if depth == 0 {
				start = m[1]
			}
			depth++
		}
	}
	return items
}

// findNextOpenTagAmong finds the earliest opening (or self-closing) tag
// at-or-after `from` whose name is one of `names`, tolerating attribute
// noise and malformed punctuation directly after the tag name (e.g.
// "<tasks, desc='...'>") via a word boundary after the name.
func findNextOpenTagAmong(content string, from int, names []string) (tagStart, tagEnd int, name string, selfClosing, found bool) {
	bestStart := -1
	for _, n := range names {
		re := regexp.MustCompile(`<` + regexp.QuoteMeta(n) + `\b[^<>]*?(/?)>`)
		loc := re.FindStringSubmatchIndex(content[from:])
		if loc == nil {
			continue
		}
		start := from + loc[0]
		if bestStart == -1 || start < bestStart {
			bestStart = start
			tagEnd = from + loc[1]
			name = n
			selfClosing = loc[2] != -1 && loc[3] > loc[2]
		}
	}
	if bestStart == -1 {
		return 0, 0, "", false, false
	}
	return bestStart, tagEnd, name, selfClosing, true
}

func findCloseTag(content string, from int, name string) (start, end int, found bool) {
	re := regexp.MustCompile(`</\s*` + regexp.QuoteMeta(name) + `\s*>`)
	loc := re.FindStringIndex(content[from:])
	if loc == nil {
		return 0, 0, false
	}
	return from + loc[0], from + loc[1], true
}

// splitDictChildren is the schema-driven builder core/(c)): for each declared field it locates the next matching opening
// tag, then closes that field's body at the first of: its own matching
// closing tag, or the next declared sibling's opening tag (this is what
// lets an unclosed leaf tag be implicitly closed by the next sibling), or
// end of content. Stray tag-like fragments and unknown children never
// match a declared name and are left embedded as literal text.
func splitDictChildren(content string, fields []string) map[string]string {
	result := map[string]string{}
	if len(fields) == 0 {
		return result
	}
	cursor := 0
	for cursor < len(content) {
		_, tagEnd, name, selfClosing, found := findNextOpenTagAmong(content, cursor, fields)
		if !found {
			break
		}
		if _, exists := result[name]; exists {
			cursor = tagEnd
			continue
		}
		if selfClosing {
			result[name] = ""
			cursor = tagEnd
			continue
		}
		closeStart, closeEnd, closeFound := findCloseTag(content, tagEnd, name)
		nextStart, _, _, _, nextFound := findNextOpenTagAmong(content, tagEnd, fields)

		var bodyEnd, after int
		switch {
		case closeFound && (!nextFound || closeStart <= nextStart):
			bodyEnd, after = closeStart, closeEnd
		case nextFound:
			bodyEnd, after = nextStart, nextStart
		default:
			bodyEnd, after = len(content), len(content)
		}
		result[name] = content[tagEnd:bodyEnd]
		cursor = after
	}
	return result
}
