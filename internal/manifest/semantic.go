package manifest

import (
	"fmt"
	"strings"
)

// checkSemantics collects every cross-field violation in one pass. It assumes
// the manifest is structurally valid.
func checkSemantics(m *Manifest) []Issue {
	var issues []Issue
	issues = append(issues, duplicateTemplates(m)...)

	ids := make(map[string]bool, len(m.Templates))
	for i, t := range m.Templates {
		ids[t.ID] = true
		if issue, ok := checkContent(t, i); !ok {
			issues = append(issues, issue)
		}
	}

	for si, shot := range m.Shots {
		for ai, action := range shot.Actions {
			path := fmt.Sprintf("shots[%d].actions[%d]", si, ai)
			where := fmt.Sprintf("Shot %d, action %d", si, ai)

			if action.TemplateID != "" && !ids[action.TemplateID] {
				issues = append(issues, Issue{
					Path:     path + ".template_id",
					Message:  fmt.Sprintf("%s: template_id %q does not match any template", where, action.TemplateID),
					Category: CategoryReferential,
				})
			}
			if action.TargetTemplateID != "" && !ids[action.TargetTemplateID] {
				issues = append(issues, Issue{
					Path:     path + ".target_template_id",
					Message:  fmt.Sprintf("%s: target_template_id %q does not match any template", where, action.TargetTemplateID),
					Category: CategoryReferential,
				})
			}
			if action.Type.RequiresTarget() && action.TargetTemplateID == "" {
				issues = append(issues, Issue{
					Path:     path + ".target_template_id",
					Message:  fmt.Sprintf("%s: %s requires target_template_id", where, action.Type),
					Category: CategoryReferential,
				})
			}
		}

		if shot.IsSilent() && len(shot.Actions) == 0 && shot.Duration == nil {
			issues = append(issues, Issue{
				Path:     fmt.Sprintf("shots[%d]", si),
				Message:  fmt.Sprintf("Shot %d: silent shot without actions requires explicit duration", si),
				Category: CategoryContent,
			})
		}
	}
	return issues
}

// duplicateTemplates reports each repeated id once, listing every index it
// appears at, in first-appearance order.
func duplicateTemplates(m *Manifest) []Issue {
	positions := make(map[string][]int)
	var order []string
	for i, t := range m.Templates {
		if _, ok := positions[t.ID]; !ok {
			order = append(order, t.ID)
		}
		positions[t.ID] = append(positions[t.ID], i)
	}

	var issues []Issue
	for _, id := range order {
		idx := positions[id]
		if len(idx) < 2 {
			continue
		}
		at := make([]string, len(idx))
		for i, n := range idx {
			at[i] = fmt.Sprintf("templates[%d]", n)
		}
		issues = append(issues, Issue{
			Path:     "templates",
			Message:  fmt.Sprintf("Duplicate template id %q at %s", id, strings.Join(at, ", ")),
			Category: CategoryReferential,
		})
	}
	return issues
}

func checkContent(t Template, index int) (Issue, bool) {
	var want string
	switch t.Type.ContentRule() {
	case ContentString:
		if _, ok := t.Content.(TextContent); ok {
			return Issue{}, true
		}
		want = "string"
	case ContentArray:
		if _, ok := t.Content.(SetContent); ok {
			return Issue{}, true
		}
		want = "array"
	case ContentOptional:
		return Issue{}, true
	}

	got := "missing"
	if t.Content != nil {
		got = t.Content.contentKind()
	}
	return Issue{
		Path:     fmt.Sprintf("templates[%d].content", index),
		Message:  fmt.Sprintf("Template %q of type %s requires %s content, got %s", t.ID, t.Type, want, got),
		Category: CategoryContent,
	}, false
}
