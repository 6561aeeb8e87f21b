// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	Host string
	Port int

	// Provider credentials
	DeepgramAPIKey    string
	GeminiAPIKey      string
	GroqAPIKey        string
	MurfAPIKey        string
	OpenWeatherAPIKey string

	// Recognition
	Language    string
	SampleRate  int
	Endpointing time.Duration

	// Session lifecycle
	SessionIdleTimeout time.Duration
	DisconnectGrace    time.Duration
	SweepInterval      time.Duration

	// Response cache
	CacheSize int
	CacheTTL  time.Duration

	// Synthesis
	DefaultVoice string

	// Uploads
	MaxUploadBytes int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Host: envStr("VOCORA_HOST", "0.0.0.0"),
		Port: envInt("VOCORA_PORT", 5000),

		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		MurfAPIKey:        os.Getenv("MURF_API_KEY"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),

		Language:    envStr("VOCORA_LANGUAGE", "en-IN"),
		SampleRate:  envInt("VOCORA_SAMPLE_RATE", 16000),
		Endpointing: envDuration("VOCORA_ENDPOINTING", 250*time.Millisecond),

		SessionIdleTimeout: envDuration("VOCORA_SESSION_IDLE_TIMEOUT", 30*time.Minute),
		DisconnectGrace:    envDuration("VOCORA_DISCONNECT_GRACE", 5*time.Minute),
		SweepInterval:      envDuration("VOCORA_SWEEP_INTERVAL", 10*time.Minute),

		CacheSize: envInt("VOCORA_CACHE_SIZE", 100),
		CacheTTL:  envDuration("VOCORA_CACHE_TTL", 5*time.Minute),

		DefaultVoice: envStr("VOCORA_DEFAULT_VOICE", "en-US-terrell"),

		MaxUploadBytes: int64(envInt("VOCORA_MAX_UPLOAD_BYTES", 10*1024*1024)),
	}
}

// Validate checks that required provider credentials are present.
// A missing credential is fatal: the process must refuse to start.
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.MurfAPIKey == "" {
		return fmt.Errorf("MURF_API_KEY is required")
	}
	if c.GeminiAPIKey == "" && c.GroqAPIKey == "" {
		return fmt.Errorf("at least one of GEMINI_API_KEY or GROQ_API_KEY is required")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
