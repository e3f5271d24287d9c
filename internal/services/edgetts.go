package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EdgeTTSService shells out to the edge-tts CLI. It needs no credentials,
// which makes it the fallback backend.
type EdgeTTSService struct {
	binary  string
	tempDir string
	timeout time.Duration
}

var _ TTSService = (*EdgeTTSService)(nil)

func NewEdgeTTSService(binary, tempDir string) *EdgeTTSService {
	if binary == "" {
		binary = "edge-tts"
	}
	return &EdgeTTSService{
		binary:  binary,
		tempDir: tempDir,
		timeout: 120 * time.Second,
	}
}

func (s *EdgeTTSService) Name() string { return "edge-tts" }

// Available reports whether the CLI can be found.
func (s *EdgeTTSService) Available() bool {
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// GenerateSpeech runs edge-tts into a scratch mp3 and returns its bytes.
func (s *EdgeTTSService) GenerateSpeech(ctx context.Context, text string, voice VoiceProfile) (*TTSResponse, error) {
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	mediaPath := filepath.Join(s.tempDir, "edge_"+uuid.NewString()+".mp3")
	defer os.Remove(mediaPath)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{
		"--voice", voice.EdgeVoice,
		"--rate=" + voice.Rate,
		"--pitch=" + voice.Pitch,
		"--text", text,
		"--write-media", mediaPath,
	}

	log.Printf("[EdgeTTS] Generating speech (voice=%s, rate=%s, textLen=%d)", voice.EdgeVoice, voice.Rate, len(text))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("edge-tts failed: %w: %s", err, truncateString(strings.TrimSpace(stderr.String()), 300))
	}

	data, err := os.ReadFile(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("edge-tts produced no audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("edge-tts produced empty audio")
	}

	return &TTSResponse{AudioData: data, Format: "mp3"}, nil
}
