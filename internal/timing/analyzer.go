package timing

import (
	"fmt"
	"math"

	"github.com/lessonforge/api/internal/manifest"
)

// Analyzer derives timing records from a validated manifest and its narration.
// It holds no mutable state.
type Analyzer struct {
	th Thresholds
}

func NewAnalyzer(th Thresholds) *Analyzer {
	return &Analyzer{th: th}
}

// Analyze computes the timing record. Any narration problem fails the whole
// call with an error wrapping ErrInvalidNarration.
func (a *Analyzer) Analyze(m *manifest.Manifest, n *Narration) (*Record, error) {
	if m == nil {
		return nil, fmt.Errorf("analyze: nil manifest")
	}
	audio, err := a.indexNarration(m, n)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Shots:           make([]ShotTiming, 0, len(m.Shots)),
		Splices:         []SplicePoint{},
		Adjustments:     []Adjustment{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	var (
		cursor   float64
		audioEnd float64 // latest narration end seen so far
	)
	for i, shot := range m.Shots {
		silent := shot.IsSilent()
		var spoken float64
		if !silent {
			spoken = audio[i].AudioDuration
		}

		duration := a.shotDuration(shot, silent, spoken)
		timing := ShotTiming{
			Index:         i,
			StartTime:     cursor,
			EndTime:       cursor + duration,
			Duration:      duration,
			AudioDuration: spoken,
			WordCount:     shot.WordCount(),
			IsSilent:      silent,
			CanBleedOver:  shot.AllowBleedOver,
		}

		if i > 0 {
			rec.Splices = append(rec.Splices, SplicePoint{
				Time:      cursor,
				Type:      spliceType(audioEnd, cursor, rec.Shots[i-1].IsSilent, silent),
				ShotIndex: i,
			})
		}

		if shot.Duration != nil {
			if adj, ok := a.adjustment(i, *shot.Duration, duration, silent, shot.AllowBleedOver); ok {
				rec.Adjustments = append(rec.Adjustments, adj)
			}
		}

		if !silent {
			audioEnd = math.Max(audioEnd, cursor+spoken)
		}
		rec.Shots = append(rec.Shots, timing)
		rec.TotalWords += timing.WordCount
		cursor = timing.EndTime
	}

	rec.TotalDuration = math.Max(cursor, audioEnd)
	if rec.TotalDuration > 0 {
		rec.WordsPerMinute = float64(rec.TotalWords) * 60 / rec.TotalDuration
	}
	rec.Pace = a.th.PaceFor(rec.WordsPerMinute)

	a.advise(rec)
	return rec, nil
}

func (a *Analyzer) shotDuration(shot manifest.Shot, silent bool, spoken float64) float64 {
	actions := shot.ActionRunTime()
	switch {
	case silent && shot.Duration != nil:
		return *shot.Duration
	case silent:
		return actions
	case shot.AllowBleedOver && shot.Duration != nil:
		// narration may run past the shot end into the next one
		return math.Max(*shot.Duration, actions)
	default:
		return math.Max(spoken, actions)
	}
}

func (a *Analyzer) adjustment(index int, authored, computed float64, silent, bleed bool) (Adjustment, bool) {
	if math.Abs(computed-authored) <= a.th.AdjustmentTolerance {
		return Adjustment{}, false
	}
	adj := Adjustment{
		ShotIndex:        index,
		OriginalDuration: authored,
		AdjustedDuration: computed,
		Direction:        Lengthened,
	}
	if computed < authored {
		adj.Direction = Shortened
	}

	switch {
	case adj.Direction == Lengthened && (silent || bleed):
		adj.Reason = "actions run longer than the authored duration"
	case adj.Direction == Lengthened:
		adj.Reason = "narration and actions run longer than the authored duration"
	default:
		adj.Reason = "narration and actions finish before the authored duration"
	}
	return adj, true
}

func spliceType(audioEnd, boundary float64, prevSilent, nextSilent bool) SpliceType {
	switch {
	case audioEnd > boundary+1e-9:
		return SpliceBleedOver
	case prevSilent || nextSilent:
		return SpliceSilence
	default:
		return SpliceHardCut
	}
}

func (a *Analyzer) advise(rec *Record) {
	if rec.TotalWords > 0 {
		wpm := rec.WordsPerMinute
		switch rec.Pace {
		case PaceSlow:
			rec.Warnings = append(rec.Warnings, fmt.Sprintf(
				"Speaking pace is slow (%.0f wpm, below %.0f)", wpm, a.th.SlowWPM))
			rec.Recommendations = append(rec.Recommendations,
				"Tighten the voiceover or shorten shot durations to keep viewers engaged")
		case PaceFast:
			rec.Recommendations = append(rec.Recommendations, fmt.Sprintf(
				"Pace is brisk (%.0f wpm); consider adding pauses after key ideas", wpm))
		case PaceVeryFast:
			rec.Warnings = append(rec.Warnings, fmt.Sprintf(
				"Speaking pace is very fast (%.0f wpm, at or above %.0f)", wpm, a.th.VeryFastWPM))
			rec.Recommendations = append(rec.Recommendations,
				"Split long voiceovers across more shots or trim the script")
		case PaceGood:
		}
	}

	a.silentRuns(rec)

	for _, adj := range rec.Adjustments {
		if adj.Magnitude() >= a.th.LargeAdjustment {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf(
				"Shot %d was %s by %.1fs (%.1fs to %.1fs): %s",
				adj.ShotIndex, adj.Direction, adj.Magnitude(), adj.OriginalDuration, adj.AdjustedDuration, adj.Reason))
		}
	}
}

// silentRuns warns about consecutive silent shots whose combined length
// reaches the long-silence threshold.
func (a *Analyzer) silentRuns(rec *Record) {
	flush := func(first, last int, length float64) {
		if first < 0 || length < a.th.LongSilenceSeconds {
			return
		}
		where := fmt.Sprintf("shot %d", first)
		if last > first {
			where = fmt.Sprintf("shots %d-%d", first, last)
		}
		rec.Warnings = append(rec.Warnings, fmt.Sprintf(
			"Silent run of %.1fs at %s without narration", length, where))
	}

	first, length := -1, 0.0
	for _, s := range rec.Shots {
		if !s.IsSilent {
			flush(first, s.Index-1, length)
			first, length = -1, 0
			continue
		}
		if first < 0 {
			first = s.Index
		}
		length += s.Duration
	}
	flush(first, len(rec.Shots)-1, length)
}

// indexNarration checks the narration against the manifest and returns it
// keyed by shot index.
func (a *Analyzer) indexNarration(m *manifest.Manifest, n *Narration) (map[int]ShotAudio, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: narration is required", ErrInvalidNarration)
	}

	byShot := make(map[int]ShotAudio, len(n.Shots))
	for _, sa := range n.Shots {
		if sa.ShotIndex < 0 || sa.ShotIndex >= len(m.Shots) {
			return nil, fmt.Errorf("%w: shot index %d out of range (manifest has %d shots)",
				ErrInvalidNarration, sa.ShotIndex, len(m.Shots))
		}
		if _, dup := byShot[sa.ShotIndex]; dup {
			return nil, fmt.Errorf("%w: duplicate entry for shot %d", ErrInvalidNarration, sa.ShotIndex)
		}
		if err := a.checkShotAudio(sa); err != nil {
			return nil, err
		}
		byShot[sa.ShotIndex] = sa
	}

	for i, shot := range m.Shots {
		if shot.IsSilent() {
			continue
		}
		sa, ok := byShot[i]
		if !ok {
			return nil, fmt.Errorf("%w: missing narration for voiced shot %d", ErrInvalidNarration, i)
		}
		if sa.AudioDuration <= 0 {
			return nil, fmt.Errorf("%w: voiced shot %d has audio duration %g", ErrInvalidNarration, i, sa.AudioDuration)
		}
	}
	return byShot, nil
}

func (a *Analyzer) checkShotAudio(sa ShotAudio) error {
	if !finite(sa.AudioDuration) || sa.AudioDuration < 0 {
		return fmt.Errorf("%w: shot %d audio duration %g must be a finite non-negative number",
			ErrInvalidNarration, sa.ShotIndex, sa.AudioDuration)
	}
	limit := sa.AudioDuration + a.th.WordTimeTolerance
	prevStart := 0.0
	for j, w := range sa.Words {
		switch {
		case !finite(w.Start) || !finite(w.End) || w.Start < 0 || w.End < 0:
			return fmt.Errorf("%w: shot %d word %d has invalid times [%g, %g]",
				ErrInvalidNarration, sa.ShotIndex, j, w.Start, w.End)
		case w.End < w.Start:
			return fmt.Errorf("%w: shot %d word %d ends (%g) before it starts (%g)",
				ErrInvalidNarration, sa.ShotIndex, j, w.End, w.Start)
		case w.End > limit:
			return fmt.Errorf("%w: shot %d word %d ends at %g past audio duration %g",
				ErrInvalidNarration, sa.ShotIndex, j, w.End, sa.AudioDuration)
		case w.Start < prevStart:
			return fmt.Errorf("%w: shot %d word %d starts before the previous word",
				ErrInvalidNarration, sa.ShotIndex, j)
		}
		prevStart = w.Start
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
