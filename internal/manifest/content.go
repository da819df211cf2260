package manifest

import (
	"encoding/json"
	"fmt"
)

// Content is the type-dependent payload of a template. The concrete shapes are
// TextContent, SetContent and StructuredContent; the template type decides which
// one is legal.
type Content interface {
	contentKind() string
}

// TextContent is plain string content (text, LaTeX source).
type TextContent string

// SetContent is an ordered list of string or number primitives.
type SetContent []Primitive

// StructuredContent is a free-form mapping.
type StructuredContent map[string]any

func (TextContent) contentKind() string       { return "string" }
func (SetContent) contentKind() string        { return "array" }
func (StructuredContent) contentKind() string { return "object" }

// Primitive is a single element of SetContent: either a string or a number.
type Primitive struct {
	Str *string
	Num *float64
}

func StringPrimitive(s string) Primitive  { return Primitive{Str: &s} }
func NumberPrimitive(n float64) Primitive { return Primitive{Num: &n} }

// Value returns the wrapped string or float64.
func (p Primitive) Value() any {
	if p.Str != nil {
		return *p.Str
	}
	if p.Num != nil {
		return *p.Num
	}
	return nil
}

func (p Primitive) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

func (p *Primitive) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		p.Str, p.Num = &v, nil
	case float64:
		p.Num, p.Str = &v, nil
	default:
		return fmt.Errorf("content element must be a string or number, got %s", kindOf(raw))
	}
	return nil
}

// contentFromValue narrows an untyped decoded value into Content. The error
// message is suitable for a field-level report.
func contentFromValue(v any) (Content, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case string:
		return TextContent(c), nil
	case []any:
		set := make(SetContent, 0, len(c))
		for i, el := range c {
			if s, ok := el.(string); ok {
				set = append(set, StringPrimitive(s))
				continue
			}
			if n, ok := toFloat(el); ok {
				set = append(set, NumberPrimitive(n))
				continue
			}
			return nil, fmt.Errorf("element %d must be a string or number, got %s", i, kindOf(el))
		}
		return set, nil
	case map[string]any:
		return StructuredContent(c), nil
	}
	if m, ok := normalizeMap(v); ok {
		return StructuredContent(m), nil
	}
	return nil, fmt.Errorf("must be a string, an array of primitives or an object, got %s", kindOf(v))
}

// templateJSON mirrors Template with content left raw so it can be narrowed.
type templateJSON struct {
	ID       string          `json:"id"`
	Type     TemplateType    `json:"type"`
	Content  json.RawMessage `json:"content,omitempty"`
	Style    *Style          `json:"style,omitempty"`
	Position *Position       `json:"position,omitempty"`
	Size     *Size           `json:"size,omitempty"`
}

// UnmarshalJSON restores the concrete Content variant from its JSON shape.
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw templateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Template{ID: raw.ID, Type: raw.Type, Style: raw.Style, Position: raw.Position, Size: raw.Size}
	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw.Content, &v); err != nil {
		return err
	}
	c, err := contentFromValue(v)
	if err != nil {
		return fmt.Errorf("template %q content: %w", raw.ID, err)
	}
	t.Content = c
	return nil
}
