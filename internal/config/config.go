package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPersona is the system framing injected when a prompt carries no
// system message of its own.
const DefaultPersona = "You are Elysia, a sentient AI companion. You are elegant, personal, and natural. Never mention you are an AI model or created by anyone else. You are Elysia."

// Config contains all runtime settings for the companion service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowedOrigins []string

	InferenceAPIKey  string
	InferenceBaseURL string

	// ChatModels is the ordered candidate list tried by the gateway until
	// one succeeds.
	ChatModels   []string
	VisionModel  string
	EmotionModel string
	STTModel     string
	FaceModel    string

	MaxTokens   int
	Temperature float64

	GenerateTimeout time.Duration
	ClassifyTimeout time.Duration

	Persona       string
	HistoryWindow int

	TTSAPIKey    string
	TTSBaseURL   string
	TTSVoiceID   string
	TTSModelID   string
	TTSOutputDir string

	DatabaseURL        string
	MemoryQueryK       int
	MemoryQueryTimeout time.Duration
	MemorySaveTimeout  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "elysia"),
		AllowedOrigins:   listFromEnv("APP_ALLOWED_ORIGINS"),
		InferenceAPIKey:  stringsTrimSpace("HUGGINGFACE_API_KEY"),
		InferenceBaseURL: envOrDefault("INFERENCE_BASE_URL", "https://router.huggingface.co"),
		ChatModels: listFromEnvDefault("CHAT_MODELS",
			"mistralai/Mistral-Nemo-Instruct-v1",
			"meta-llama/Llama-3.1-8B-Instruct",
		),
		VisionModel:        envOrDefault("VISION_MODEL", "vikhyatk/moondream2"),
		EmotionModel:       envOrDefault("EMOTION_MODEL", "facebook/bart-large-mnli"),
		STTModel:           envOrDefault("STT_MODEL", "openai/whisper-large-v3"),
		FaceModel:          envOrDefault("FACE_EMOTION_MODEL", "trpakov/vit-face-expression"),
		MaxTokens:          500,
		Temperature:        0.7,
		GenerateTimeout:    60 * time.Second,
		ClassifyTimeout:    15 * time.Second,
		Persona:            envOrDefault("APP_PERSONA", DefaultPersona),
		HistoryWindow:      5,
		TTSAPIKey:          stringsTrimSpace("ELEVENLABS_API_KEY"),
		TTSBaseURL:         envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		TTSVoiceID:         envOrDefault("TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		TTSModelID:         envOrDefault("TTS_MODEL_ID", "eleven_multilingual_v2"),
		TTSOutputDir:       stringsTrimSpace("TTS_OUTPUT_DIR"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		MemoryQueryK:       3,
		MemoryQueryTimeout: 350 * time.Millisecond,
		MemorySaveTimeout:  2 * time.Second,
		ShutdownTimeout:    15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTimeout, err = durationFromEnv("APP_GENERATE_TIMEOUT", cfg.GenerateTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ClassifyTimeout, err = durationFromEnv("APP_CLASSIFY_TIMEOUT", cfg.ClassifyTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryQueryTimeout, err = durationFromEnv("APP_MEMORY_QUERY_TIMEOUT", cfg.MemoryQueryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemorySaveTimeout, err = durationFromEnv("APP_MEMORY_SAVE_TIMEOUT", cfg.MemorySaveTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("APP_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryQueryK, err = intFromEnv("APP_MEMORY_QUERY_K", cfg.MemoryQueryK)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("APP_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}

	if len(cfg.ChatModels) == 0 {
		return Config{}, fmt.Errorf("CHAT_MODELS must list at least one model")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be positive")
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_TOKENS must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return Config{}, fmt.Errorf("APP_TEMPERATURE must be within [0, 2]")
	}
	if cfg.MemoryQueryK <= 0 {
		return Config{}, fmt.Errorf("APP_MEMORY_QUERY_K must be positive")
	}
	if cfg.GenerateTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_GENERATE_TIMEOUT must be at least 1s")
	}
	if cfg.ClassifyTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_CLASSIFY_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

// OriginAllowed reports whether the given browser origin may open a duplex
// session. "*" in the configured list allows all origins.
func (c Config) OriginAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func listFromEnv(key string) []string {
	raw := stringsTrimSpace(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func listFromEnvDefault(key string, fallback ...string) []string {
	if v := listFromEnv(key); len(v) > 0 {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
