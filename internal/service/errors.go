package service

import (
	"errors"

	"github.com/lessonforge/api/internal/manifest"
)

var (
	ErrJobNotFound          = errors.New("job not found")
	ErrJobNotCompleted      = errors.New("job not completed")
	ErrJobFinished          = errors.New("job already finished")
	ErrManifestInvalid      = errors.New("manifest invalid")
	ErrNarrationUnavailable = errors.New("narration unavailable")
	ErrInvalidRange         = errors.New("invalid date range")
)

// ManifestError carries the validation result of a rejected manifest.
type ManifestError struct {
	Result manifest.Result
}

func (e *ManifestError) Error() string {
	return "manifest has blocking validation errors"
}

func (e *ManifestError) Is(target error) bool {
	return target == ErrManifestInvalid
}
