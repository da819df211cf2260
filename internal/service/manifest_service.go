package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lessonforge/api/internal/client"
	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/metrics"
	"github.com/lessonforge/api/internal/timing"
)

// ManifestService validates manifests and analyzes their timing.
type ManifestService struct {
	validator  *manifest.Validator
	analyzer   *timing.Analyzer
	speech     client.NarrationSource
	thresholds manifest.Thresholds
	logger     zerolog.Logger
}

func NewManifestService(validator *manifest.Validator, analyzer *timing.Analyzer, speech client.NarrationSource, thresholds manifest.Thresholds) *ManifestService {
	return &ManifestService{
		validator:  validator,
		analyzer:   analyzer,
		speech:     speech,
		thresholds: thresholds,
		logger:     log.WithComponent("manifest"),
	}
}

// Validate checks a raw JSON manifest. The result is returned whether or not
// the manifest is valid.
func (s *ManifestService) Validate(ctx context.Context, body []byte, partial bool) manifest.Result {
	var res manifest.Result
	if partial {
		res = s.validator.ValidatePartialJSON(body)
	} else {
		res = s.validator.ValidateJSON(body)
	}
	record(partial, res)

	logger := log.WithContext(ctx, s.logger)
	logger.Debug().
		Bool("partial", partial).
		Bool("valid", res.Valid).
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Msg("manifest validated")
	return res
}

// Analyze validates the manifest and computes its timing record. When
// narration is nil it is requested from the speech service, or estimated if
// no speech service is configured.
func (s *ManifestService) Analyze(ctx context.Context, body []byte, narration *timing.Narration) (*timing.Record, error) {
	res := s.validator.ValidateJSON(body)
	record(false, res)
	if !res.Valid {
		return nil, &ManifestError{Result: res}
	}
	m := res.Manifest
	logger := log.WithContext(ctx, s.logger).With().Str(log.FieldVideoID, m.VideoID).Logger()

	if narration == nil {
		var err error
		narration, err = s.narrationFor(ctx, m)
		if err != nil {
			metrics.RecordAnalysis("error", 0)
			logger.Warn().Err(err).Msg("narration lookup failed")
			return nil, err
		}
	}

	rec, err := s.analyzer.Analyze(m, narration)
	if err != nil {
		if errors.Is(err, timing.ErrInvalidNarration) {
			metrics.RecordAnalysis("invalid_narration", 0)
		} else {
			metrics.RecordAnalysis("error", 0)
		}
		return nil, err
	}

	metrics.RecordAnalysis("success", rec.TotalDuration)
	logger.Info().
		Float64("total_duration", rec.TotalDuration).
		Str("pace", string(rec.Pace)).
		Int("warnings", len(rec.Warnings)).
		Msg("timing analyzed")
	return rec, nil
}

func (s *ManifestService) narrationFor(ctx context.Context, m *manifest.Manifest) (*timing.Narration, error) {
	if s.speech == nil || !s.speech.IsConfigured() {
		return timing.EstimateNarration(m, s.thresholds.SpeechWordsPerMin), nil
	}
	n, err := s.speech.Timings(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNarrationUnavailable, err)
	}
	return n, nil
}

func record(partial bool, res manifest.Result) {
	categories := make([]string, len(res.Errors))
	for i, issue := range res.Errors {
		categories[i] = string(issue.Category)
	}
	metrics.RecordValidation(partial, res.Valid, categories)
}
