package manifest

import "fmt"

// Category classifies a blocking validation error.
type Category string

const (
	CategoryStructural  Category = "structural"
	CategoryReferential Category = "referential"
	CategoryContent     Category = "content"
)

// Issue is a single blocking validation error.
type Issue struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Result is the outcome of a validation run. Manifest is set whenever the input
// could be decoded into the typed shape, even if semantic errors were found.
type Result struct {
	Valid    bool      `json:"valid"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Errors   []Issue   `json:"errors"`
	Warnings []string  `json:"warnings"`
}

// Messages flattens the blocking errors into display strings.
func (r Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, issue := range r.Errors {
		out[i] = issue.String()
	}
	return out
}
