package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks untrusted manifest input. It is safe for concurrent use.
type Validator struct {
	validate   *validator.Validate
	thresholds Thresholds
}

// NewValidator builds a Validator using the given advisory thresholds.
func NewValidator(thresholds Thresholds) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, thresholds: thresholds}
}

// Validate runs structural then semantic validation over a decoded JSON or YAML
// document. Warnings are only produced when there are no blocking errors.
func (v *Validator) Validate(input any) Result {
	return v.run(input, false)
}

// ValidatePartial applies the schema with every field optional. Type errors and
// numeric ranges are still reported; semantic checks are skipped.
func (v *Validator) ValidatePartial(input any) Result {
	return v.run(input, true)
}

// ValidateJSON parses raw bytes and validates the result.
func (v *Validator) ValidateJSON(data []byte) Result {
	input, err := parseJSON(data)
	if err != nil {
		return failed(err)
	}
	return v.Validate(input)
}

// ValidatePartialJSON is the partial-mode counterpart of ValidateJSON.
func (v *Validator) ValidatePartialJSON(data []byte) Result {
	input, err := parseJSON(data)
	if err != nil {
		return failed(err)
	}
	return v.ValidatePartial(input)
}

func (v *Validator) run(input any, partial bool) Result {
	m, issues := decode(input)
	if m == nil {
		return Result{Errors: issues, Warnings: []string{}}
	}

	seen := make(map[string]bool, len(issues))
	for _, issue := range issues {
		seen[issue.Path] = true
	}
	for _, issue := range v.structural(m, partial) {
		if !seen[issue.Path] {
			issues = append(issues, issue)
		}
	}

	if len(issues) == 0 && !partial {
		issues = checkSemantics(m)
	}

	res := Result{Manifest: m, Errors: issues, Warnings: []string{}}
	if issues == nil {
		res.Errors = []Issue{}
	}
	if len(res.Errors) == 0 {
		res.Valid = true
		res.Warnings = Warnings(m, v.thresholds)
	}
	return res
}

// structural applies struct-tag constraints and converts validator namespaces
// to JSON paths.
func (v *Validator) structural(m *Manifest, partial bool) []Issue {
	err := v.validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Message: err.Error(), Category: CategoryStructural}}
	}

	var issues []Issue
	for _, fe := range verrs {
		if partial && isPresenceRule(fe) {
			continue
		}
		issues = append(issues, Issue{
			Path:     namespaceToPath(fe.Namespace()),
			Message:  ruleMessage(fe),
			Category: CategoryStructural,
		})
	}
	return issues
}

func isPresenceRule(fe validator.FieldError) bool {
	switch fe.Tag() {
	case "required":
		return true
	case "min":
		return fe.Kind() == reflect.Slice
	}
	return false
}

// namespaceToPath turns "Manifest.shots[0].duration" into "shots[0].duration".
func namespaceToPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func parseJSON(data []byte) (any, error) {
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return input, nil
}

func failed(err error) Result {
	return Result{
		Errors:   []Issue{{Message: err.Error(), Category: CategoryStructural}},
		Warnings: []string{},
	}
}
