package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobarin/factshorts/internal/models"
)

// ---------------------------------------------------------------------------
// TTSService: common interface for text-to-speech backends
// ElevenLabs, Cartesia and edge-tts implement this interface so the speech
// engine can chain them without knowing the underlying provider.
// ---------------------------------------------------------------------------

// ErrSpeechSynthesisUnavailable means every configured backend failed or none was configured.
var ErrSpeechSynthesisUnavailable = errors.New("speech synthesis unavailable")

// TTSResponse is the common response type from any TTS backend.
type TTSResponse struct {
	AudioData []byte
	Format    string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS backend must implement.
type TTSService interface {
	Name() string
	GenerateSpeech(ctx context.Context, text string, voice VoiceProfile) (*TTSResponse, error)
}

// AudioTool converts and measures audio files. FFmpegService implements it.
type AudioTool interface {
	Transcode(ctx context.Context, inputPath, outputPath string, sampleRate int) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// ---------------------------------------------------------------------------
// Voice profiles
// ---------------------------------------------------------------------------

// VoiceProfile bundles the per-backend knobs for one narration style.
type VoiceProfile struct {
	ID        string
	Name      string
	Style     string
	EdgeVoice string  // edge-tts voice short name
	Rate      string  // edge-tts rate, e.g. "+10%"
	Pitch     string  // edge-tts pitch, e.g. "+5Hz"
	Speed     float64 // ElevenLabs / Cartesia speed multiplier
	Stability float64 // ElevenLabs stability
	StyleGain float64 // ElevenLabs style exaggeration
}

const DefaultVoice = "default"

var voiceProfiles = map[string]VoiceProfile{
	"default": {
		ID: "default", Name: "Default Voice", Style: "professional",
		EdgeVoice: "en-US-ChristopherNeural", Rate: "+0%", Pitch: "+0Hz",
		Speed: 1.0, Stability: 0.60, StyleGain: 0.35,
	},
	"energetic": {
		ID: "energetic", Name: "Energetic Voice", Style: "enthusiastic",
		EdgeVoice: "en-US-ChristopherNeural", Rate: "+10%", Pitch: "+5Hz",
		Speed: 1.1, Stability: 0.45, StyleGain: 0.60,
	},
	"calm": {
		ID: "calm", Name: "Calm Voice", Style: "soothing",
		EdgeVoice: "en-US-JennyNeural", Rate: "-5%", Pitch: "+0Hz",
		Speed: 0.95, Stability: 0.75, StyleGain: 0.20,
	},
	"authoritative": {
		ID: "authoritative", Name: "Authoritative Voice", Style: "confident",
		EdgeVoice: "en-US-GuyNeural", Rate: "+0%", Pitch: "-5Hz",
		Speed: 1.0, Stability: 0.70, StyleGain: 0.30,
	},
}

// LookupVoice returns the named profile, or the default profile when the id is unknown.
func LookupVoice(id string) VoiceProfile {
	if p, ok := voiceProfiles[strings.ToLower(strings.TrimSpace(id))]; ok {
		return p
	}
	if id != "" {
		log.Printf("[Speech] Warning: voice %q not found, using default", id)
	}
	return voiceProfiles[DefaultVoice]
}

// VoiceIDs lists the known profile ids.
func VoiceIDs() []string {
	return []string{"default", "energetic", "calm", "authoritative"}
}

// RecommendVoice maps a content type to a profile id.
func RecommendVoice(contentType string) string {
	switch strings.ToLower(contentType) {
	case "fact":
		return "authoritative"
	case "story", "entertainment":
		return "energetic"
	case "tutorial":
		return "calm"
	default:
		return DefaultVoice
	}
}

// ---------------------------------------------------------------------------
// SpeechEngine: primary backend with a single fallback
// ---------------------------------------------------------------------------

type SpeechEngine struct {
	primary    TTSService // nil when no neural backend is configured
	fallback   TTSService // nil when the fallback binary is missing
	audio      AudioTool
	sampleRate int
}

func NewSpeechEngine(primary, fallback TTSService, audio AudioTool, sampleRate int) *SpeechEngine {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &SpeechEngine{
		primary:    primary,
		fallback:   fallback,
		audio:      audio,
		sampleRate: sampleRate,
	}
}

// Synthesize narrates text into outputPath (its extension picks the container).
// The primary backend is tried first; any failure moves on to the fallback.
// Duration is always measured from the written file.
func (e *SpeechEngine) Synthesize(ctx context.Context, text, outputPath, voiceID string) (*models.NarrationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("narration text is empty")
	}
	voice := LookupVoice(voiceID)

	var errs []error
	if e.primary != nil {
		result, err := e.synthesizeWith(ctx, e.primary, text, outputPath, voice)
		if err == nil {
			return result, nil
		}
		log.Printf("[Speech] Primary backend %s failed: %v", e.primary.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", e.primary.Name(), err))
	}

	if e.fallback != nil {
		log.Printf("[Speech] Falling back to %s", e.fallback.Name())
		result, err := e.synthesizeWith(ctx, e.fallback, text, outputPath, voice)
		if err == nil {
			result.UsedFallback = true
			return result, nil
		}
		log.Printf("[Speech] Fallback backend %s failed: %v", e.fallback.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", e.fallback.Name(), err))
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no backend configured", ErrSpeechSynthesisUnavailable)
	}
	return nil, fmt.Errorf("%w: %w", ErrSpeechSynthesisUnavailable, errors.Join(errs...))
}

// synthesizeWith writes the backend's encoded audio to an intermediate file,
// transcodes it to the target container and removes the intermediate.
func (e *SpeechEngine) synthesizeWith(ctx context.Context, backend TTSService, text, outputPath string, voice VoiceProfile) (*models.NarrationResult, error) {
	resp, err := backend.GenerateSpeech(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if len(resp.AudioData) == 0 {
		return nil, fmt.Errorf("backend returned empty audio")
	}

	format := resp.Format
	if format == "" {
		format = "mp3"
	}
	stem := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	intermediate := fmt.Sprintf("%s_%s.%s", stem, backend.Name(), format)
	if intermediate == outputPath {
		intermediate = fmt.Sprintf("%s_%s_raw.%s", stem, backend.Name(), format)
	}

	if err := os.WriteFile(intermediate, resp.AudioData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write intermediate audio: %w", err)
	}
	defer os.Remove(intermediate)

	if err := e.audio.Transcode(ctx, intermediate, outputPath, e.sampleRate); err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	duration, err := e.audio.ProbeDuration(ctx, outputPath)
	if err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to measure narration duration: %w", err)
	}
	if duration <= 0 {
		os.Remove(outputPath)
		return nil, fmt.Errorf("narration has no audible duration")
	}

	log.Printf("[Speech] %s produced %.2fs of audio (%d bytes encoded)", backend.Name(), duration, len(resp.AudioData))

	return &models.NarrationResult{
		AudioPath:   outputPath,
		Duration:    duration,
		WordTimings: SynthesizeTimings(text, duration),
		SampleRate:  e.sampleRate,
	}, nil
}
