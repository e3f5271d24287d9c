package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Default Cartesia API version
	CartesiaAPIVersion = "2024-06-10"

	// Default Cartesia voice
	DefaultCartesiaVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

type CartesiaService struct {
	apiKey         string
	apiURL         string
	apiVersion     string
	defaultVoiceID string
	client         *http.Client
}

// NewCartesiaService creates a Cartesia service; an empty voiceID uses the default voice.
func NewCartesiaService(apiKey, apiURL, voiceID string) *CartesiaService {
	if voiceID == "" {
		voiceID = DefaultCartesiaVoiceID
	}
	return &CartesiaService{
		apiKey:         apiKey,
		apiURL:         strings.TrimRight(apiURL, "/"),
		apiVersion:     CartesiaAPIVersion,
		defaultVoiceID: voiceID,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

// CartesiaRequest matches the Cartesia /tts/bytes request body
type CartesiaRequest struct {
	ModelID      string                    `json:"model_id"`
	Transcript   string                    `json:"transcript"`
	Voice        CartesiaVoiceSpecifier    `json:"voice"`
	Language     *string                   `json:"language,omitempty"`
	OutputFormat CartesiaOutputFormat      `json:"output_format"`
	Config       *CartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type CartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type CartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type CartesiaGenerationConfig struct {
	Speed   *float64 `json:"speed,omitempty"`   // 0.6 to 1.5
	Emotion *string  `json:"emotion,omitempty"` // e.g., "neutral", "excited", "calm"
}

// Ensure CartesiaService implements TTSService at compile time.
var _ TTSService = (*CartesiaService)(nil)

func (s *CartesiaService) Name() string { return "cartesia" }

// GenerateSpeech generates audio from text using Cartesia TTS.
func (s *CartesiaService) GenerateSpeech(ctx context.Context, text string, voice VoiceProfile) (*TTSResponse, error) {
	language := "en"
	emotion := parseEmotionFromStyle(voice.Style)
	speed := voice.Speed
	if speed <= 0 {
		speed = 1.0
	}

	reqBody := CartesiaRequest{
		ModelID:    "sonic-english",
		Transcript: text,
		Voice: CartesiaVoiceSpecifier{
			Mode: "id",
			ID:   s.defaultVoiceID,
		},
		Language: &language,
		OutputFormat: CartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
		Config: &CartesiaGenerationConfig{
			Speed:   &speed,
			Emotion: &emotion,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/tts/bytes", s.apiURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cartesia-Version", s.apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cartesia returned status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	return &TTSResponse{
		AudioData: audioData,
		Format:    "mp3",
	}, nil
}

// parseEmotionFromStyle maps a profile style word to a Cartesia emotion
func parseEmotionFromStyle(style string) string {
	emotionMap := map[string]string{
		"enthusiastic": "excited",
		"energetic":    "excited",
		"soothing":     "calm",
		"calm":         "calm",
		"confident":    "confident",
		"serious":      "calm",
		"dramatic":     "intense",
		"happy":        "happy",
	}

	styleLower := strings.ToLower(style)
	for keyword, emotion := range emotionMap {
		if strings.Contains(styleLower, keyword) {
			return emotion
		}
	}

	return "neutral"
}
