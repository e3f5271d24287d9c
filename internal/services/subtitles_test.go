package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/factshorts/internal/config"
	"github.com/bobarin/factshorts/internal/models"
)

func testCaptionRenderer() *CaptionRenderer {
	return NewCaptionRenderer(config.CaptionConfig{
		FontName:      "Arial",
		FontSize:      24,
		Bold:          true,
		Outline:       2,
		Shadow:        0,
		Alignment:     2,
		MarginV:       150,
		PrimaryColour: "&H0000FFFF",
		OutlineColour: "&H00000000",
	}, config.RenderConfig{Width: 1080, Height: 1920})
}

func TestCaptionRenderOneEventPerWord(t *testing.T) {
	words := SynthesizeTimings("Octopuses have three hearts.", 2.4)

	out, err := testCaptionRenderer().Render(words)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var dialogues []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Dialogue:") {
			dialogues = append(dialogues, line)
		}
	}
	if len(dialogues) != len(words) {
		t.Fatalf("expected %d dialogue events, got %d", len(words), len(dialogues))
	}

	want := []string{"OCTOPUSES", "HAVE", "THREE", "HEARTS."}
	for i, line := range dialogues {
		if !strings.HasSuffix(line, ",,"+want[i]) {
			t.Errorf("event %d: expected text %q in %q", i, want[i], line)
		}
	}
	if !strings.HasPrefix(dialogues[0], "Dialogue: 0,0:00:00.00,0:00:00.57,Default") {
		t.Errorf("unexpected first event timing: %q", dialogues[0])
	}
}

func TestCaptionRenderStyle(t *testing.T) {
	out, err := testCaptionRenderer().Render([]models.WordTiming{{Word: "hi", Start: 0, End: 0.5, Duration: 0.5}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wantStyle := "Style: Default,Arial,24,&H0000FFFF,&H0000FFFF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,2,0,2,10,10,150,1"
	if !strings.Contains(out, wantStyle+"\n") {
		t.Errorf("style line missing, got:\n%s", out)
	}
	if strings.Count(out, "\nStyle: ") != 1 {
		t.Errorf("expected exactly one style")
	}
	if !strings.Contains(out, "PlayResX: 1080\nPlayResY: 1920\n") {
		t.Errorf("play resolution should follow the render canvas")
	}
}

func TestCaptionRenderIsDeterministic(t *testing.T) {
	words := SynthesizeTimings("the quick brown fox jumps over the lazy dog", 4.321)
	r := testCaptionRenderer()

	dir := t.TempDir()
	first := filepath.Join(dir, "a.ass")
	second := filepath.Join(dir, "b.ass")
	if err := r.WriteFile(words, first); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.WriteFile(words, second); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if len(a) == 0 || string(a) != string(b) {
		t.Fatalf("expected byte-identical subtitle tracks")
	}
}

func TestCaptionRenderEmpty(t *testing.T) {
	if _, err := testCaptionRenderer().Render(nil); err == nil {
		t.Fatal("expected error for empty timeline")
	}
}

func TestCaptionTextEscapesOverrides(t *testing.T) {
	r := testCaptionRenderer()
	if got := r.captionText("{\\b1}straße"); got != "(/B1)STRASSE" {
		t.Errorf("unexpected caption text %q", got)
	}
}

func TestFormatASSTime(t *testing.T) {
	cases := map[float64]string{
		0:        "0:00:00.00",
		0.57:     "0:00:00.57",
		1.996:    "0:00:02.00",
		61.25:    "0:01:01.25",
		3723.456: "1:02:03.46",
		-1:       "0:00:00.00",
	}
	for in, want := range cases {
		if got := formatASSTime(in); got != want {
			t.Errorf("formatASSTime(%v) = %q, want %q", in, got, want)
		}
	}
}
