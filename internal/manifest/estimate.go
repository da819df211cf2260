package manifest

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultActionDuration is the run time assumed for an action without an
// explicit duration, in seconds.
const DefaultActionDuration = 1.0

// Thresholds are the advisory limits used when producing warnings.
type Thresholds struct {
	MaxTotalSeconds   float64
	MaxVoiceoverChars int
	MaxActionsPerShot int
	SpeechWordsPerMin float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxTotalSeconds:   300,
		MaxVoiceoverChars: 500,
		MaxActionsPerShot: 10,
		SpeechWordsPerMin: 150,
	}
}

// RunTime is the action's delay plus its duration.
func (a Action) RunTime() float64 {
	d := DefaultActionDuration
	if a.Duration != nil {
		d = *a.Duration
	}
	if a.Delay != nil {
		d += *a.Delay
	}
	return d
}

// ActionRunTime sums the run time of every action in the shot.
func (s Shot) ActionRunTime() float64 {
	var total float64
	for _, a := range s.Actions {
		total += a.RunTime()
	}
	return total
}

// IsSilent reports whether the voiceover is blank.
func (s Shot) IsSilent() bool {
	return strings.TrimSpace(s.Voiceover) == ""
}

func (s Shot) WordCount() int {
	return len(strings.Fields(s.Voiceover))
}

// EstimateShotDuration returns the explicit duration when set, otherwise the
// larger of the spoken estimate and the action run time.
func EstimateShotDuration(s Shot, wordsPerMinute float64) float64 {
	if s.Duration != nil {
		return *s.Duration
	}
	var spoken float64
	if wordsPerMinute > 0 {
		spoken = float64(s.WordCount()) / wordsPerMinute * 60
	}
	return math.Max(spoken, s.ActionRunTime())
}

// EstimateDuration sums the estimated duration of every shot.
func EstimateDuration(m *Manifest, wordsPerMinute float64) float64 {
	var total float64
	for _, s := range m.Shots {
		total += EstimateShotDuration(s, wordsPerMinute)
	}
	return total
}

// Warnings returns advisory messages for a manifest that has no blocking errors.
// The returned slice is never nil.
func Warnings(m *Manifest, th Thresholds) []string {
	warnings := []string{}

	if total := EstimateDuration(m, th.SpeechWordsPerMin); th.MaxTotalSeconds > 0 && total > th.MaxTotalSeconds {
		warnings = append(warnings, fmt.Sprintf(
			"Estimated duration %.1fs exceeds %.0fs; consider splitting into multiple videos", total, th.MaxTotalSeconds))
	}
	for i, s := range m.Shots {
		if n := utf8.RuneCountInString(s.Voiceover); th.MaxVoiceoverChars > 0 && n > th.MaxVoiceoverChars {
			warnings = append(warnings, fmt.Sprintf(
				"Shot %d: voiceover is %d characters (over %d); consider splitting the shot", i, n, th.MaxVoiceoverChars))
		}
		if n := len(s.Actions); th.MaxActionsPerShot > 0 && n > th.MaxActionsPerShot {
			warnings = append(warnings, fmt.Sprintf(
				"Shot %d: %d actions (over %d) may be hard to follow", i, n, th.MaxActionsPerShot))
		}
	}
	return warnings
}
