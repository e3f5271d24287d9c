package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RenderConfig controls the single output shape every video is encoded to.
type RenderConfig struct {
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	FPS            int    `yaml:"fps"`
	VideoCodec     string `yaml:"video_codec"`
	Preset         string `yaml:"preset"`
	AudioCodec     string `yaml:"audio_codec"`
	AudioBitrate   string `yaml:"audio_bitrate"`
	PixelFormat    string `yaml:"pixel_format"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout is the ceiling for one composite run.
func (r RenderConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// CaptionConfig is the one caption style. Colours use the ASS &HAABBGGRR form.
type CaptionConfig struct {
	FontName      string `yaml:"font_name"`
	FontSize      int    `yaml:"font_size"`
	Bold          bool   `yaml:"bold"`
	Outline       int    `yaml:"outline"`
	Shadow        int    `yaml:"shadow"`
	Alignment     int    `yaml:"alignment"`
	MarginV       int    `yaml:"margin_v"`
	PrimaryColour string `yaml:"primary_colour"`
	OutlineColour string `yaml:"outline_colour"`
}

type AudioConfig struct {
	VoiceGain         float64 `yaml:"voice_gain"`
	MusicGain         float64 `yaml:"music_gain"`
	MixTimeoutSeconds int     `yaml:"mix_timeout_seconds"`
	SampleRate        int     `yaml:"sample_rate"`
}

func (a AudioConfig) MixTimeout() time.Duration {
	return time.Duration(a.MixTimeoutSeconds) * time.Second
}

type VoiceConfig struct {
	Default string `yaml:"default"`
}

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database (generation job + video catalog)
	DatabaseURL string

	// Redis (generation job queue)
	RedisURL string

	// Supabase (optional archive of finished videos)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Fact source
	FactSource      string // "api_ninjas" or "reddit"
	APINinjasKey    string
	RedditSubreddit string

	// Script generation
	ScriptProvider string // "openai" or "gemini"
	OpenAIKey      string
	OpenAIBaseURL  string // empty = api.openai.com; set to an OpenAI-compatible endpoint such as OpenRouter
	OpenAIModel    string
	GeminiKey      string
	GeminiModel    string

	// ElevenLabs (preferred primary speech backend)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Cartesia (primary speech backend when ElevenLabs key is not set)
	CartesiaKey     string
	CartesiaURL     string
	CartesiaVoiceID string

	// edge-tts CLI (fallback speech backend)
	EdgeTTSPath string

	// Stock footage
	PexelsKey         string
	PixabayKey        string
	MinClipDuration   float64
	MinClipWidth      int
	KeywordLimit      int
	TopCandidates     int
	DownloadAttempts  int
	DownloadBackoff   time.Duration
	SelectionAttempts int
	SearchTimeout     time.Duration

	// External tools
	FFmpegPath  string
	FFprobePath string

	// Paths
	OutputDir string // one sub-directory per generated video
	MusicDir  string
	QueueFile string

	// Publishing
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeTokenFile    string
	YouTubePrivacy      string
	YouTubeCategoryID   string
	PublishPollInterval time.Duration
	PurgeAfter          time.Duration

	Render   RenderConfig
	Captions CaptionConfig
	Audio    AudioConfig
	Voice    VoiceConfig

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "fact-shorts"),
		FactSource:            getEnv("FACT_SOURCE", "api_ninjas"),
		APINinjasKey:          getEnv("API_NINJAS_KEY", ""),
		RedditSubreddit:       getEnv("REDDIT_SUBREDDIT", "todayilearned"),
		ScriptProvider:        getEnv("SCRIPT_PROVIDER", "openai"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:           getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:           getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:       getEnv("CARTESIA_VOICE_ID", ""),
		EdgeTTSPath:           getEnv("EDGE_TTS_PATH", "edge-tts"),
		PexelsKey:             getEnv("PEXELS_API_KEY", ""),
		PixabayKey:            getEnv("PIXABAY_API_KEY", ""),
		MinClipDuration:       getEnvFloat("MIN_CLIP_DURATION", 10),
		MinClipWidth:          getEnvInt("MIN_CLIP_WIDTH", 540),
		KeywordLimit:          getEnvInt("KEYWORD_LIMIT", 3),
		TopCandidates:         getEnvInt("TOP_CANDIDATES", 5),
		DownloadAttempts:      getEnvInt("DOWNLOAD_ATTEMPTS", 3),
		DownloadBackoff:       time.Duration(getEnvInt("DOWNLOAD_BACKOFF_MS", 1000)) * time.Millisecond,
		SelectionAttempts:     getEnvInt("SELECTION_ATTEMPTS", 3),
		SearchTimeout:         time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 10)) * time.Second,
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:           getEnv("FFPROBE_PATH", "ffprobe"),
		OutputDir:             getEnv("OUTPUT_DIR", "output/videos"),
		MusicDir:              getEnv("MUSIC_DIR", "assets/music"),
		QueueFile:             getEnv("UPLOAD_QUEUE_FILE", "output/upload_queue.json"),
		YouTubeClientID:       getEnv("YOUTUBE_CLIENT_ID", ""),
		YouTubeClientSecret:   getEnv("YOUTUBE_CLIENT_SECRET", ""),
		YouTubeTokenFile:      getEnv("YOUTUBE_TOKEN_FILE", "credentials/youtube_token.json"),
		YouTubePrivacy:        getEnv("YOUTUBE_PRIVACY", "public"),
		YouTubeCategoryID:     getEnv("YOUTUBE_CATEGORY_ID", "28"),
		PublishPollInterval:   time.Duration(getEnvInt("PUBLISH_POLL_SECONDS", 60)) * time.Second,
		PurgeAfter:            time.Duration(getEnvInt("QUEUE_PURGE_DAYS", 7)) * 24 * time.Hour,
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 1),

		Render: RenderConfig{
			Width:          1080,
			Height:         1920,
			FPS:            30,
			VideoCodec:     "libx264",
			Preset:         "medium",
			AudioCodec:     "aac",
			AudioBitrate:   "192k",
			PixelFormat:    "yuv420p",
			TimeoutSeconds: 300,
		},
		Captions: CaptionConfig{
			FontName:      "Arial",
			FontSize:      24,
			Bold:          true,
			Outline:       2,
			Shadow:        0,
			Alignment:     2,
			MarginV:       150,
			PrimaryColour: "&H0000FFFF",
			OutlineColour: "&H00000000",
		},
		Audio: AudioConfig{
			VoiceGain:         getEnvFloat("VOICE_GAIN", 1.0),
			MusicGain:         getEnvFloat("MUSIC_GAIN", 0.2),
			MixTimeoutSeconds: 60,
			SampleRate:        24000,
		},
		Voice: VoiceConfig{
			Default: getEnv("DEFAULT_VOICE", "default"),
		},
	}

	if path := getEnv("SHORTS_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, err
		}
	}

	if cfg.Render.Width <= 0 || cfg.Render.Height <= 0 || cfg.Render.FPS <= 0 {
		return nil, fmt.Errorf("render width, height and fps must be positive")
	}

	return cfg, nil
}

// applyOverlay merges the render/captions/audio/voice blocks of a YAML file
// over the environment-derived values. Keys absent from the file keep their value.
func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	overlay := struct {
		Render   *RenderConfig  `yaml:"render"`
		Captions *CaptionConfig `yaml:"captions"`
		Audio    *AudioConfig   `yaml:"audio"`
		Voice    *VoiceConfig   `yaml:"voice"`
	}{&c.Render, &c.Captions, &c.Audio, &c.Voice}

	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ValidatePipeline checks the credentials every generation run needs.
func (c *Config) ValidatePipeline() error {
	switch c.FactSource {
	case "api_ninjas":
		if c.APINinjasKey == "" {
			return fmt.Errorf("API_NINJAS_KEY is required")
		}
	case "reddit":
	default:
		return fmt.Errorf("unknown FACT_SOURCE %q", c.FactSource)
	}

	switch c.ScriptProvider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown SCRIPT_PROVIDER %q", c.ScriptProvider)
	}

	// At least one footage provider must be configured
	if c.PexelsKey == "" && c.PixabayKey == "" {
		return fmt.Errorf("either PEXELS_API_KEY or PIXABAY_API_KEY is required for footage")
	}

	return nil
}

// ValidatePublish checks the YouTube OAuth client settings.
func (c *Config) ValidatePublish() error {
	if c.YouTubeClientID == "" || c.YouTubeClientSecret == "" {
		return fmt.Errorf("YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET are required")
	}
	return nil
}

// ValidateServer checks what the long-running API process needs on top of the pipeline.
func (c *Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return c.ValidatePipeline()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
