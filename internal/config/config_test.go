package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHORTS_CONFIG_FILE", "")
	t.Setenv("VOICE_GAIN", "")
	t.Setenv("MUSIC_GAIN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Render.Width != 1080 || cfg.Render.Height != 1920 || cfg.Render.FPS != 30 {
		t.Errorf("unexpected canvas %dx%d@%d", cfg.Render.Width, cfg.Render.Height, cfg.Render.FPS)
	}
	if cfg.Render.Timeout() != 300*time.Second {
		t.Errorf("expected 300s render timeout, got %v", cfg.Render.Timeout())
	}
	if cfg.Audio.VoiceGain != 1.0 || cfg.Audio.MusicGain != 0.2 {
		t.Errorf("unexpected gains voice=%v music=%v", cfg.Audio.VoiceGain, cfg.Audio.MusicGain)
	}
	if cfg.Audio.MixTimeout() != 60*time.Second {
		t.Errorf("expected 60s mix timeout, got %v", cfg.Audio.MixTimeout())
	}
	if cfg.Captions.FontName != "Arial" || cfg.Captions.MarginV != 150 || cfg.Captions.Alignment != 2 {
		t.Errorf("unexpected caption style %+v", cfg.Captions)
	}
	if cfg.DownloadAttempts != 3 || cfg.SelectionAttempts != 3 || cfg.TopCandidates != 5 {
		t.Errorf("unexpected retry settings %d/%d/%d", cfg.DownloadAttempts, cfg.SelectionAttempts, cfg.TopCandidates)
	}
	if cfg.PurgeAfter != 7*24*time.Hour {
		t.Errorf("expected 7 day purge, got %v", cfg.PurgeAfter)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SHORTS_CONFIG_FILE", "")
	t.Setenv("MUSIC_GAIN", "0.35")
	t.Setenv("MIN_CLIP_DURATION", "12.5")
	t.Setenv("WORKER_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.MusicGain != 0.35 {
		t.Errorf("expected music gain 0.35, got %v", cfg.Audio.MusicGain)
	}
	if cfg.MinClipDuration != 12.5 {
		t.Errorf("expected min clip duration 12.5, got %v", cfg.MinClipDuration)
	}
	if cfg.WorkerEnabled {
		t.Errorf("expected worker disabled")
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shorts.yaml")
	overlay := []byte(`
render:
  width: 720
  height: 1280
captions:
  font_name: Impact
  margin_v: 200
audio:
  music_gain: 0.1
`)
	if err := os.WriteFile(path, overlay, 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("SHORTS_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Render.Width != 720 || cfg.Render.Height != 1280 {
		t.Errorf("overlay canvas not applied: %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Render.FPS != 30 {
		t.Errorf("fps should keep its default, got %d", cfg.Render.FPS)
	}
	if cfg.Captions.FontName != "Impact" || cfg.Captions.MarginV != 200 {
		t.Errorf("overlay captions not applied: %+v", cfg.Captions)
	}
	if cfg.Captions.FontSize != 24 {
		t.Errorf("font size should keep its default, got %d", cfg.Captions.FontSize)
	}
	if cfg.Audio.MusicGain != 0.1 {
		t.Errorf("expected music gain 0.1, got %v", cfg.Audio.MusicGain)
	}
}

func TestLoadRejectsMissingOverlay(t *testing.T) {
	t.Setenv("SHORTS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing overlay file")
	}
}

func TestValidatePipeline(t *testing.T) {
	base := Config{
		FactSource:     "api_ninjas",
		APINinjasKey:   "k",
		ScriptProvider: "openai",
		OpenAIKey:      "k",
		PexelsKey:      "k",
	}
	if err := base.ValidatePipeline(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing fact key", func(c *Config) { c.APINinjasKey = "" }},
		{"unknown fact source", func(c *Config) { c.FactSource = "rss" }},
		{"missing openai key", func(c *Config) { c.OpenAIKey = "" }},
		{"gemini without key", func(c *Config) { c.ScriptProvider = "gemini" }},
		{"no footage provider", func(c *Config) { c.PexelsKey = "" }},
	}
	for _, tc := range cases {
		c := base
		tc.mutate(&c)
		if err := c.ValidatePipeline(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}

	reddit := base
	reddit.FactSource = "reddit"
	reddit.APINinjasKey = ""
	if err := reddit.ValidatePipeline(); err != nil {
		t.Errorf("reddit fact source needs no key, got %v", err)
	}
}

func TestValidateServerRequiresDatabase(t *testing.T) {
	c := Config{
		FactSource:     "reddit",
		ScriptProvider: "openai",
		OpenAIKey:      "k",
		PixabayKey:     "k",
		RedisURL:       "redis://localhost:6379",
	}
	if err := c.ValidateServer(); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}
	c.DatabaseURL = "postgres://localhost/shorts"
	if err := c.ValidateServer(); err != nil {
		t.Fatalf("expected valid server config, got %v", err)
	}
}
