package services

import (
	"math"
	"strings"

	"github.com/bobarin/factshorts/internal/models"
)

const (
	// DefaultWordsPerSecond is the assumed mean narration rate used when no
	// audio-derived duration is known.
	DefaultWordsPerSecond = 2.5

	// wordDisplayFraction is the share of each word's slot during which the
	// caption is on screen; the rest is a gap before the next word.
	wordDisplayFraction = 0.95
)

// EstimateDuration returns the expected narration length of text in seconds.
func EstimateDuration(text string) float64 {
	return float64(len(strings.Fields(text))) / DefaultWordsPerSecond
}

// SynthesizeTimings spreads the whitespace-delimited words of text evenly over
// duration seconds. Each word owns an equal slot and is displayed for 95% of it,
// starting at the slot boundary. A non-positive duration falls back to
// EstimateDuration. Times are rounded to the millisecond.
//
// This is an analytic approximation; it does not look at the audio.
func SynthesizeTimings(text string, duration float64) []models.WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []models.WordTiming{}
	}

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		duration = float64(len(words)) / DefaultWordsPerSecond
	}

	slot := duration / float64(len(words))
	display := roundMillis(slot * wordDisplayFraction)

	timings := make([]models.WordTiming, len(words))
	for i, word := range words {
		start := roundMillis(float64(i) * slot)
		end := roundMillis(start + display)

		// Rounding must never push a caption into the next slot or past the end.
		limit := math.Floor(duration*1000+1e-9) / 1000
		if i < len(words)-1 {
			limit = roundMillis(float64(i+1) * slot)
		}
		if end > limit {
			end = limit
		}

		timings[i] = models.WordTiming{
			Word:     word,
			Start:    start,
			End:      end,
			Duration: roundMillis(end - start),
		}
	}

	return timings
}

func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
