package timing

import "errors"

// ErrInvalidNarration is wrapped by every narration input error.
var ErrInvalidNarration = errors.New("invalid narration")

// Word is a single spoken word with its offsets inside the shot's audio.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ShotAudio is the narration timing for one shot.
type ShotAudio struct {
	ShotIndex     int     `json:"shot_index"`
	AudioDuration float64 `json:"audio_duration"`
	Words         []Word  `json:"words"`
}

// Narration is the word-level timing produced by the speech service.
type Narration struct {
	Shots []ShotAudio `json:"shots"`
}

// Pace is the speaking-rate band of a video, derived from words per minute.
type Pace string

const (
	PaceSlow     Pace = "slow"
	PaceGood     Pace = "good"
	PaceFast     Pace = "fast"
	PaceVeryFast Pace = "very_fast"
)

// SpliceType classifies the transition at a shot boundary.
type SpliceType string

const (
	SpliceHardCut   SpliceType = "hard_cut"
	SpliceBleedOver SpliceType = "bleed_over"
	SpliceSilence   SpliceType = "silence"
)

// Direction tells whether an authored shot duration was stretched or cut.
type Direction string

const (
	Lengthened Direction = "lengthened"
	Shortened  Direction = "shortened"
)

// ShotTiming is the resolved placement of one shot on the timeline.
type ShotTiming struct {
	Index         int     `json:"index"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	Duration      float64 `json:"duration"`
	AudioDuration float64 `json:"audio_duration"`
	WordCount     int     `json:"word_count"`
	IsSilent      bool    `json:"is_silent"`
	CanBleedOver  bool    `json:"can_bleed_over"`
}

// SplicePoint marks where two shots join. ShotIndex is the shot that starts.
type SplicePoint struct {
	Time      float64    `json:"time"`
	Type      SpliceType `json:"type"`
	ShotIndex int        `json:"shot_index"`
}

// Adjustment records a shot whose authored duration did not survive analysis.
type Adjustment struct {
	ShotIndex        int       `json:"shot_index"`
	OriginalDuration float64   `json:"original_duration"`
	AdjustedDuration float64   `json:"adjusted_duration"`
	Direction        Direction `json:"direction"`
	Reason           string    `json:"reason"`
}

// Magnitude is the absolute size of the change in seconds.
func (a Adjustment) Magnitude() float64 {
	d := a.AdjustedDuration - a.OriginalDuration
	if d < 0 {
		return -d
	}
	return d
}

// Record is the timing analysis of a whole manifest.
type Record struct {
	TotalDuration   float64       `json:"total_duration"`
	TotalWords      int           `json:"total_words"`
	WordsPerMinute  float64       `json:"words_per_minute"`
	Pace            Pace          `json:"pace"`
	Shots           []ShotTiming  `json:"shots"`
	Splices         []SplicePoint `json:"splice_points"`
	Adjustments     []Adjustment  `json:"adjustments"`
	Warnings        []string      `json:"warnings"`
	Recommendations []string      `json:"recommendations"`
}

// Thresholds configures pace bands and warning triggers.
type Thresholds struct {
	SlowWPM             float64
	FastWPM             float64
	VeryFastWPM         float64
	LongSilenceSeconds  float64
	LargeAdjustment     float64
	AdjustmentTolerance float64
	WordTimeTolerance   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SlowWPM:             120,
		FastWPM:             150,
		VeryFastWPM:         180,
		LongSilenceSeconds:  10,
		LargeAdjustment:     3,
		AdjustmentTolerance: 0.01,
		WordTimeTolerance:   0.05,
	}
}

// PaceFor classifies a speaking rate. Bands are half-open with the lower bound
// inclusive.
func (th Thresholds) PaceFor(wpm float64) Pace {
	switch {
	case wpm < th.SlowWPM:
		return PaceSlow
	case wpm < th.FastWPM:
		return PaceGood
	case wpm < th.VeryFastWPM:
		return PaceFast
	default:
		return PaceVeryFast
	}
}
