package timing

import (
	"strings"

	"github.com/lessonforge/api/internal/manifest"
)

// EstimateNarration synthesises evenly paced narration for every voiced shot
// at wordsPerMinute. It stands in for real speech timing when no speech
// service is available.
func EstimateNarration(m *manifest.Manifest, wordsPerMinute float64) *Narration {
	n := &Narration{Shots: []ShotAudio{}}
	if wordsPerMinute <= 0 {
		wordsPerMinute = manifest.DefaultThresholds().SpeechWordsPerMin
	}
	perWord := 60 / wordsPerMinute

	for i, s := range m.Shots {
		if s.IsSilent() {
			continue
		}
		fields := strings.Fields(s.Voiceover)
		words := make([]Word, len(fields))
		for j, f := range fields {
			words[j] = Word{Word: f, Start: float64(j) * perWord, End: float64(j+1) * perWord}
		}
		n.Shots = append(n.Shots, ShotAudio{
			ShotIndex:     i,
			AudioDuration: float64(len(fields)) * perWord,
			Words:         words,
		})
	}
	return n
}
