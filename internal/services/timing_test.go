package services

import (
	"math"
	"strings"
	"testing"
)

func TestSynthesizeTimingsProperties(t *testing.T) {
	texts := []string{
		"Octopuses have three hearts.",
		"one",
		"A  day on Venus   is longer than a year on Venus, which surprises almost everyone who hears it.",
		strings.Repeat("word ", 120),
	}
	durations := []float64{0.2, 1, 3.14159, 7.5, 29.987, 61}

	for _, text := range texts {
		words := strings.Fields(text)
		for _, d := range durations {
			timings := SynthesizeTimings(text, d)
			if len(timings) != len(words) {
				t.Fatalf("text %q, d=%v: expected %d timings, got %d", text, d, len(words), len(timings))
			}

			slot := d / float64(len(words))
			if math.Abs(slot*float64(len(words))-d) > 1e-9 {
				t.Errorf("slot widths do not sum to %v", d)
			}

			for i, wt := range timings {
				if wt.Word != words[i] {
					t.Errorf("word %d: expected %q, got %q", i, words[i], wt.Word)
				}
				if wt.End < wt.Start {
					t.Errorf("word %d: end %v before start %v", i, wt.End, wt.Start)
				}
				if math.Abs(wt.Start+wt.Duration-wt.End) > 0.0015 {
					t.Errorf("word %d: start+duration=%v, end=%v", i, wt.Start+wt.Duration, wt.End)
				}
				if wt.Duration > slot+0.001 {
					t.Errorf("word %d: duration %v exceeds slot %v", i, wt.Duration, slot)
				}
				if i > 0 {
					prev := timings[i-1]
					if wt.Start < prev.Start {
						t.Errorf("word %d: start %v decreases from %v", i, wt.Start, prev.Start)
					}
					if prev.End > wt.Start {
						t.Errorf("word %d overlaps: prev end %v > start %v", i, prev.End, wt.Start)
					}
				}
			}

			if last := timings[len(timings)-1]; last.End > d {
				t.Errorf("text %q, d=%v: last end %v exceeds duration", text, d, last.End)
			}
		}
	}
}

func TestSynthesizeTimingsExactValues(t *testing.T) {
	timings := SynthesizeTimings("one two three four", 4)

	wantStarts := []float64{0, 1, 2, 3}
	for i, wt := range timings {
		if wt.Start != wantStarts[i] {
			t.Errorf("word %d: start %v, want %v", i, wt.Start, wantStarts[i])
		}
		if wt.Duration != 0.95 {
			t.Errorf("word %d: duration %v, want 0.95", i, wt.Duration)
		}
		if math.Abs(wt.End-(wantStarts[i]+0.95)) > 1e-9 {
			t.Errorf("word %d: end %v, want %v", i, wt.End, wantStarts[i]+0.95)
		}
	}
}

func TestSynthesizeTimingsEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		timings := SynthesizeTimings(text, 10)
		if timings == nil || len(timings) != 0 {
			t.Errorf("expected empty non-nil sequence for %q, got %#v", text, timings)
		}
	}
}

func TestSynthesizeTimingsFallsBackToEstimate(t *testing.T) {
	text := "five words are right here"
	want := EstimateDuration(text)
	if want != 2 {
		t.Fatalf("expected estimate of 2s, got %v", want)
	}

	for _, d := range []float64{0, -3, math.NaN()} {
		timings := SynthesizeTimings(text, d)
		last := timings[len(timings)-1]
		if last.Start != 1.6 {
			t.Errorf("d=%v: expected last start 1.6 from estimate, got %v", d, last.Start)
		}
		if last.End > want {
			t.Errorf("d=%v: last end %v exceeds estimate %v", d, last.End, want)
		}
	}
}

func TestSynthesizeTimingsClampStaysOnMilliseconds(t *testing.T) {
	// slots this narrow push the last word past the end before clamping
	timings := SynthesizeTimings("a b", 0.0017)
	if len(timings) != 2 {
		t.Fatalf("expected 2 timings, got %d", len(timings))
	}
	for i, wt := range timings {
		for _, v := range []float64{wt.Start, wt.End, wt.Duration} {
			if math.Abs(v*1000-math.Round(v*1000)) > 1e-6 {
				t.Errorf("word %d: %v is not on a millisecond", i, v)
			}
		}
		if wt.End > 0.0017 {
			t.Errorf("word %d ends at %v, past the narration", i, wt.End)
		}
		if wt.End < wt.Start {
			t.Errorf("word %d ends before it starts: %+v", i, wt)
		}
	}
}
