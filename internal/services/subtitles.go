package services

import (
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bobarin/factshorts/internal/config"
	"github.com/bobarin/factshorts/internal/models"
)

// ---------------------------------------------------------------------------
// One-word-at-a-time ASS caption renderer
//
// Every WordTiming becomes exactly one Dialogue event showing that word in
// upper case. There is no grouping or wrapping. A single "Default" style is
// emitted, built from config.CaptionConfig:
//   - bold text, outline, no drop shadow
//   - bottom-center anchored (alignment 2) with a configurable MarginV
//
// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB).
// ---------------------------------------------------------------------------

const assColorSemiBlack = "&H80000000" // back colour; unused while shadow is 0

type CaptionRenderer struct {
	style    config.CaptionConfig
	playResX int
	playResY int
	upper    cases.Caser
}

func NewCaptionRenderer(style config.CaptionConfig, render config.RenderConfig) *CaptionRenderer {
	return &CaptionRenderer{
		style:    style,
		playResX: render.Width,
		playResY: render.Height,
		upper:    cases.Upper(language.Und),
	}
}

// Render returns the full ASS document for the timeline. The output depends
// only on its inputs, so rendering the same words twice is byte-identical.
func (r *CaptionRenderer) Render(words []models.WordTiming) (string, error) {
	if len(words) == 0 {
		return "", fmt.Errorf("no words to generate subtitles from")
	}

	var sb strings.Builder

	// Script header
	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString(fmt.Sprintf("PlayResX: %d\n", r.playResX))
	sb.WriteString(fmt.Sprintf("PlayResY: %d\n", r.playResY))
	sb.WriteString("WrapStyle: 2\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	// Style definitions
	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")

	bold := 0
	if r.style.Bold {
		bold = -1
	}
	sb.WriteString(fmt.Sprintf(
		"Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%d,%d,%d,10,10,%d,1\n",
		r.style.FontName, r.style.FontSize,
		r.style.PrimaryColour, // PrimaryColour (text)
		r.style.PrimaryColour, // SecondaryColour
		r.style.OutlineColour, // OutlineColour
		assColorSemiBlack,     // BackColour
		bold,
		r.style.Outline,
		r.style.Shadow,
		r.style.Alignment,
		r.style.MarginV,
	))
	sb.WriteString("\n")

	// Events (one per word)
	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, word := range words {
		sb.WriteString(fmt.Sprintf(
			"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(word.Start),
			formatASSTime(word.End),
			r.captionText(word.Word),
		))
	}

	return sb.String(), nil
}

// WriteFile renders the timeline and writes it to outputPath.
func (r *CaptionRenderer) WriteFile(words []models.WordTiming, outputPath string) error {
	content, err := r.Render(words)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

// captionText upper-cases a word and neutralises ASS override syntax.
func (r *CaptionRenderer) captionText(word string) string {
	clean := strings.NewReplacer("{", "(", "}", ")", "\\", "/").Replace(strings.TrimSpace(word))
	return r.upper.String(clean)
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}

	total := int64(math.Round(seconds * 100))
	hours := total / 360000
	minutes := (total % 360000) / 6000
	secs := (total % 6000) / 100
	centiseconds := total % 100

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
