package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config stores runtime configuration for the app.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	LLM      LLMConfig
	Sites    SitesConfig
}

type DeepgramConfig struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SitesConfig struct {
	Dir        string
	PublicBase string
}

// Load resolves configuration from environment variables and sensible
// defaults. The default LLM endpoint is a local Ollama OpenAI-compatible
// server, so the app works without any cloud key.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:     strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL: envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:      envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:   strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("SITESPEAK_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("SITESPEAK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("SITESPEAK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("SITESPEAK_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("SITESPEAK_CHANNELS", 1),
		},
		LLM: LLMConfig{
			APIKey: firstNonEmpty(
				os.Getenv("SITESPEAK_LLM_API_KEY"),
				os.Getenv("OPENAI_API_KEY"),
				"ollama",
			),
			BaseURL: envOrDefault("SITESPEAK_LLM_BASE_URL", "http://localhost:11434/v1"),
			Model:   envOrDefault("SITESPEAK_LLM_MODEL", "phi3:mini"),
		},
		Sites: SitesConfig{
			Dir:        envOrDefault("SITESPEAK_SITES_DIR", filepath.Join(home, ".local", "share", "sitespeak", "websites")),
			PublicBase: envOrDefault("SITESPEAK_SITES_BASE", "/websites"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	cfg.Sites.PublicBase = "/" + strings.Trim(cfg.Sites.PublicBase, "/")

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
