package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/factshorts/internal/config"
)

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	render      config.RenderConfig
	audio       config.AudioConfig
}

var _ AudioTool = (*FFmpegService)(nil)

func NewFFmpegService(cfg *config.Config, tempDir string) *FFmpegService {
	// Create temp directory if it doesn't exist
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}

	return &FFmpegService{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		tempDir:     tempDir,
		render:      cfg.Render,
		audio:       cfg.Audio,
	}
}

// RenderError carries the tail of ffmpeg's stderr for a failed run.
type RenderError struct {
	Op       string
	Err      error
	Stderr   string
	TimedOut bool
}

func (e *RenderError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("ffmpeg %s timed out: %v", e.Op, e.Err)
	}
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s failed: %v: %s", e.Op, e.Err, e.Stderr)
}

func (e *RenderError) Unwrap() error { return e.Err }

// run executes ffmpeg with its own timeout and captures stderr.
func (s *FFmpegService) run(ctx context.Context, op string, timeout time.Duration, args []string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &RenderError{
			Op:       op,
			Err:      err,
			Stderr:   tailString(strings.TrimSpace(stderr.String()), 2000),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}
	return nil
}

// Transcode decodes inputPath and re-encodes it to outputPath as mono audio at sampleRate.
func (s *FFmpegService) Transcode(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		outputPath,
	}
	return s.run(ctx, "transcode", s.audio.MixTimeout(), args)
}

// MixAudio blends narration with background music at the configured gains.
// Without music (empty path or missing file) the voice path is returned
// unchanged and ffmpeg is not invoked. The output always lasts as long as the
// voice track; the music is looped underneath it.
func (s *FFmpegService) MixAudio(ctx context.Context, voicePath, musicPath, outputPath string) (string, error) {
	if musicPath == "" {
		return voicePath, nil
	}
	if _, err := os.Stat(musicPath); err != nil {
		log.Printf("[FFmpeg] Music %s unavailable (%v), keeping narration only", musicPath, err)
		return voicePath, nil
	}

	filterComplex := fmt.Sprintf(
		"[0:a]volume=%s[a1];[1:a]volume=%s[a2];[a1][a2]amix=inputs=2:duration=first",
		formatGain(s.audio.VoiceGain), formatGain(s.audio.MusicGain),
	)

	args := []string{
		"-y",
		"-i", voicePath, // Input 0: narration
		"-stream_loop", "-1", // Loop the music under the whole narration
		"-i", musicPath, // Input 1: background music
		"-filter_complex", filterComplex,
		"-c:a", s.render.AudioCodec,
		"-b:a", s.render.AudioBitrate,
		outputPath,
	}

	log.Printf("[FFmpeg] Mixing narration with %s (voice=%.2f, music=%.2f)", filepath.Base(musicPath), s.audio.VoiceGain, s.audio.MusicGain)

	if err := s.run(ctx, "mix", s.audio.MixTimeout(), args); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

// CompositeRequest describes one final render.
type CompositeRequest struct {
	ClipPath     string
	AudioPath    string
	SubtitlePath string // empty = no burned-in captions
	Duration     float64
	OutputPath   string
}

// BuildCompositeArgs returns the ffmpeg arguments for a composite writing to outputPath.
// The clip is looped, scaled to cover the canvas, centre-cropped, optionally
// captioned, muxed with the audio and cut to the requested duration.
func (s *FFmpegService) BuildCompositeArgs(req CompositeRequest, outputPath string) []string {
	w, h := s.render.Width, s.render.Height
	filter := fmt.Sprintf("[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d[v]", w, h, w, h)
	videoLabel := "[v]"
	if req.SubtitlePath != "" {
		filter += fmt.Sprintf(";[v]ass='%s'[vout]", escapeFFmpegFilterPath(req.SubtitlePath))
		videoLabel = "[vout]"
	}

	return []string{
		"-y",
		"-stream_loop", "-1",
		"-i", req.ClipPath,
		"-i", req.AudioPath,
		"-filter_complex", filter,
		"-map", videoLabel,
		"-map", "1:a",
		"-t", strconv.FormatFloat(req.Duration, 'f', 3, 64),
		"-c:v", s.render.VideoCodec,
		"-preset", s.render.Preset,
		"-c:a", s.render.AudioCodec,
		"-b:a", s.render.AudioBitrate,
		"-r", strconv.Itoa(s.render.FPS),
		"-pix_fmt", s.render.PixelFormat,
		outputPath,
	}
}

// Composite renders the final video. ffmpeg writes to a sibling partial file
// that is renamed into place only on success, so a failed or timed-out run
// never leaves a file at req.OutputPath.
func (s *FFmpegService) Composite(ctx context.Context, req CompositeRequest) error {
	if req.Duration <= 0 {
		return fmt.Errorf("composite duration must be positive, got %v", req.Duration)
	}

	ext := filepath.Ext(req.OutputPath)
	partial := strings.TrimSuffix(req.OutputPath, ext) + ".partial" + ext
	os.Remove(req.OutputPath)

	if req.SubtitlePath != "" {
		log.Printf("[FFmpeg] Burning in subtitles from %s", req.SubtitlePath)
	}
	log.Printf("[FFmpeg] Compositing %s (%dx%d@%d, %.2fs)", filepath.Base(req.OutputPath),
		s.render.Width, s.render.Height, s.render.FPS, req.Duration)

	if err := s.run(ctx, "composite", s.render.Timeout(), s.BuildCompositeArgs(req, partial)); err != nil {
		os.Remove(partial)
		return err
	}

	info, err := os.Stat(partial)
	if err != nil || info.Size() == 0 {
		os.Remove(partial)
		return &RenderError{Op: "composite", Err: fmt.Errorf("no output produced")}
	}

	if err := os.Rename(partial, req.OutputPath); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to move rendered video into place: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// ffprobe
// ---------------------------------------------------------------------------

// ProbeResult is the subset of ffprobe JSON output the pipeline reads.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

type ProbeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

type ProbeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// DurationSeconds prefers the container duration, then the longest stream.
func (r ProbeResult) DurationSeconds() float64 {
	if d, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64); err == nil && d > 0 {
		return d
	}
	longest := 0.0
	for _, st := range r.Streams {
		if d, err := strconv.ParseFloat(strings.TrimSpace(st.Duration), 64); err == nil && d > longest {
			longest = d
		}
	}
	return longest
}

// Probe runs ffprobe against path and parses its JSON report.
func (s *FFmpegService) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	args := []string{"-v", "error", "-show_format", "-show_streams", "-of", "json", path}

	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

// ProbeDuration returns the decoded duration of a media file in seconds.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	result, err := s.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	d := result.DurationSeconds()
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return d, nil
}

// CreateTempFile returns a path inside the service's temp directory
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
// FFmpeg filter strings treat colons, backslashes, and single quotes specially.
func escapeFFmpegFilterPath(path string) string {
	// Replace backslashes first, then colons (relevant for Windows paths and filter syntax)
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

func formatGain(g float64) string {
	return strconv.FormatFloat(g, 'f', -1, 64)
}

func tailString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
