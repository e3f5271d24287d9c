package worker

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bobarin/factshorts/internal/config"
	"github.com/bobarin/factshorts/internal/services"
)

// BuildOrchestrator assembles the production pipeline from configuration.
// queue may be nil when publishing is not wanted.
func BuildOrchestrator(cfg *config.Config, queue PublishQueue) (*Orchestrator, error) {
	if err := cfg.ValidatePipeline(); err != nil {
		return nil, err
	}

	var facts FactFetcher
	switch cfg.FactSource {
	case "reddit":
		src, err := services.NewRedditFactSource(cfg.RedditSubreddit)
		if err != nil {
			return nil, fmt.Errorf("failed to create reddit client: %w", err)
		}
		facts = src
	default:
		facts = services.NewAPINinjasFactSource(cfg.APINinjasKey)
	}

	var writer services.ScriptWriter
	switch cfg.ScriptProvider {
	case "gemini":
		writer = services.NewGeminiScriptWriter(cfg.GeminiKey, cfg.GeminiModel)
	default:
		writer = services.NewOpenAIScriptWriter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
	log.Printf("[Pipeline] Facts: %s, script: %s", facts.Name(), writer.Name())

	tempDir := filepath.Join(os.TempDir(), "factshorts")
	ffmpeg := services.NewFFmpegService(cfg, tempDir)

	// ElevenLabs preferred, Cartesia otherwise, edge-tts as the fallback
	var primary services.TTSService
	switch {
	case cfg.ElevenLabsKey != "":
		primary = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	case cfg.CartesiaKey != "":
		primary = services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID)
	}
	var fallback services.TTSService
	if edge := services.NewEdgeTTSService(cfg.EdgeTTSPath, tempDir); edge.Available() {
		fallback = edge
	} else {
		log.Printf("[Pipeline] Warning: %s not found, fallback speech disabled", cfg.EdgeTTSPath)
	}
	if primary == nil && fallback == nil {
		return nil, fmt.Errorf("no speech backend available: set ELEVENLABS_API_KEY or CARTESIA_API_KEY, or install edge-tts")
	}
	speech := services.NewSpeechEngine(primary, fallback, ffmpeg, cfg.Audio.SampleRate)

	var providers []services.FootageProvider
	if cfg.PexelsKey != "" {
		providers = append(providers, services.NewPexelsProvider(cfg.PexelsKey, cfg.MinClipWidth))
	}
	if cfg.PixabayKey != "" {
		providers = append(providers, services.NewPixabayProvider(cfg.PixabayKey, cfg.MinClipWidth))
	}
	footage := services.NewAssetAcquirer(services.AcquirerOptions{
		KeywordLimit:     cfg.KeywordLimit,
		TopCandidates:    cfg.TopCandidates,
		DownloadAttempts: cfg.DownloadAttempts,
		DownloadBackoff:  cfg.DownloadBackoff,
		SearchTimeout:    cfg.SearchTimeout,
	}, providers...)

	deps := Dependencies{
		Facts:    facts,
		Script:   writer,
		Speech:   speech,
		Footage:  footage,
		Captions: services.NewCaptionRenderer(cfg.Captions, cfg.Render),
		Media:    ffmpeg,
		Queue:    queue,
	}

	return NewOrchestrator(deps, pipelineSettings(cfg)), nil
}

func pipelineSettings(cfg *config.Config) Settings {
	return Settings{
		OutputDir:         cfg.OutputDir,
		MusicDir:          cfg.MusicDir,
		MinClipDuration:   cfg.MinClipDuration,
		SelectionAttempts: cfg.SelectionAttempts,
		KeywordLimit:      cfg.KeywordLimit,
		DefaultVoice:      cfg.Voice.Default,
	}
}

// BuildPublisher returns the YouTube publish target, failing when no usable
// credentials are on disk.
func BuildPublisher(cfg *config.Config) (*services.YouTubePublisher, error) {
	if err := cfg.ValidatePublish(); err != nil {
		return nil, err
	}
	yt := services.NewYouTubePublisher(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenFile, cfg.YouTubePrivacy, cfg.YouTubeCategoryID)
	state, err := yt.CredentialState()
	if err != nil {
		return nil, err
	}
	if state == services.CredentialsAbsent {
		return nil, fmt.Errorf("%w: no refresh token in %s", services.ErrCredentialsAbsent, cfg.YouTubeTokenFile)
	}
	log.Printf("[YouTube] Credentials %s", state)
	return yt, nil
}
