package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// decoder walks an untrusted, already-parsed document (JSON or YAML) and builds a
// typed Manifest. Shape errors are collected rather than returned on first hit.
type decoder struct {
	issues []Issue
}

func (d *decoder) fail(path, format string, args ...any) {
	d.issues = append(d.issues, Issue{
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
		Category: CategoryStructural,
	})
}

func decode(input any) (*Manifest, []Issue) {
	d := &decoder{}
	root, ok := normalizeMap(input)
	if !ok {
		d.fail("", "manifest must be an object, got %s", kindOf(input))
		return nil, d.issues
	}

	m := &Manifest{Templates: []Template{}}
	m.VideoID = d.str(root, "video_id", "video_id")

	if raw, ok := present(root, "templates"); ok {
		items, ok := raw.([]any)
		if !ok {
			d.fail("templates", "must be an array, got %s", kindOf(raw))
		} else {
			for i, item := range items {
				m.Templates = append(m.Templates, d.template(item, fmt.Sprintf("templates[%d]", i)))
			}
		}
	}

	if raw, ok := present(root, "shots"); ok {
		items, ok := raw.([]any)
		if !ok {
			d.fail("shots", "must be an array, got %s", kindOf(raw))
		} else {
			m.Shots = make([]Shot, 0, len(items))
			for i, item := range items {
				m.Shots = append(m.Shots, d.shot(item, fmt.Sprintf("shots[%d]", i)))
			}
		}
	}

	return m, d.issues
}

func (d *decoder) template(raw any, path string) Template {
	var t Template
	obj, ok := normalizeMap(raw)
	if !ok {
		d.fail(path, "must be an object, got %s", kindOf(raw))
		return t
	}

	t.ID = d.str(obj, "id", path+".id")
	if s := d.str(obj, "type", path+".type"); s != "" {
		tt, err := ParseTemplateType(s)
		if err != nil {
			d.fail(path+".type", "must be one of %s, got %q", joinTemplateTypes(), s)
		}
		t.Type = tt
	}

	if v, ok := present(obj, "content"); ok {
		c, err := contentFromValue(v)
		if err != nil {
			d.fail(path+".content", "%s", err.Error())
		}
		t.Content = c
	}

	if v, ok := present(obj, "style"); ok {
		t.Style = d.style(v, path+".style")
	}
	if v, ok := present(obj, "position"); ok {
		if pos, ok := d.object(v, path+".position"); ok {
			t.Position = &Position{
				X: d.optNum(pos, "x", path+".position.x"),
				Y: d.optNum(pos, "y", path+".position.y"),
			}
		}
	}
	if v, ok := present(obj, "size"); ok {
		if size, ok := d.object(v, path+".size"); ok {
			t.Size = &Size{
				Width:  d.optNum(size, "width", path+".size.width"),
				Height: d.optNum(size, "height", path+".size.height"),
			}
		}
	}
	return t
}

func (d *decoder) style(raw any, path string) *Style {
	obj, ok := d.object(raw, path)
	if !ok {
		return nil
	}
	return &Style{
		Color:      d.str(obj, "color", path+".color"),
		FontSize:   d.optNum(obj, "font_size", path+".font_size"),
		FontWeight: d.str(obj, "font_weight", path+".font_weight"),
		Opacity:    d.optNum(obj, "opacity", path+".opacity"),
	}
}

func (d *decoder) shot(raw any, path string) Shot {
	s := Shot{Actions: []Action{}}
	obj, ok := normalizeMap(raw)
	if !ok {
		d.fail(path, "must be an object, got %s", kindOf(raw))
		return s
	}

	s.Voiceover = d.str(obj, "voiceover", path+".voiceover")
	s.Duration = d.optNum(obj, "duration", path+".duration")
	if v, ok := present(obj, "allow_bleed_over"); ok {
		b, ok := v.(bool)
		if !ok {
			d.fail(path+".allow_bleed_over", "must be a boolean, got %s", kindOf(v))
		}
		s.AllowBleedOver = b
	}

	if v, ok := present(obj, "actions"); ok {
		items, ok := v.([]any)
		if !ok {
			d.fail(path+".actions", "must be an array, got %s", kindOf(v))
		} else {
			for i, item := range items {
				s.Actions = append(s.Actions, d.action(item, fmt.Sprintf("%s.actions[%d]", path, i)))
			}
		}
	}
	return s
}

func (d *decoder) action(raw any, path string) Action {
	var a Action
	obj, ok := normalizeMap(raw)
	if !ok {
		d.fail(path, "must be an object, got %s", kindOf(raw))
		return a
	}

	if s := d.str(obj, "type", path+".type"); s != "" {
		at, err := ParseActionType(s)
		if err != nil {
			d.fail(path+".type", "must be one of %s, got %q", joinActionTypes(), s)
		}
		a.Type = at
	}
	a.TemplateID = d.str(obj, "template_id", path+".template_id")
	a.TargetTemplateID = d.str(obj, "target_template_id", path+".target_template_id")
	a.Duration = d.optNum(obj, "duration", path+".duration")
	a.Delay = d.optNum(obj, "delay", path+".delay")
	if v, ok := present(obj, "params"); ok {
		if params, ok := d.object(v, path+".params"); ok {
			a.Params = params
		}
	}
	return a
}

func (d *decoder) object(raw any, path string) (map[string]any, bool) {
	obj, ok := normalizeMap(raw)
	if !ok {
		d.fail(path, "must be an object, got %s", kindOf(raw))
	}
	return obj, ok
}

func (d *decoder) str(obj map[string]any, key, path string) string {
	v, ok := present(obj, key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(path, "must be a string, got %s", kindOf(v))
	}
	return s
}

func (d *decoder) optNum(obj map[string]any, key, path string) *float64 {
	v, ok := present(obj, key)
	if !ok {
		return nil
	}
	n, ok := toFloat(v)
	if !ok {
		d.fail(path, "must be a number, got %s", kindOf(v))
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		d.fail(path, "must be a finite number")
		return nil
	}
	return &n
}

// present treats JSON null the same as an absent key.
func present(obj map[string]any, key string) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// normalizeMap accepts both JSON-style and YAML-style decoded objects.
func normalizeMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any, map[any]any:
		return "object"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func joinTemplateTypes() string {
	names := make([]string, len(ValidTemplateTypes))
	for i, t := range ValidTemplateTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func joinActionTypes() string {
	names := make([]string, len(ValidActionTypes))
	for i, t := range ValidActionTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
