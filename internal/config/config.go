// Package config loads run settings from an optional YAML file and the
// environment. Secrets only ever come from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendWhisperCPP = "whispercpp"
	BackendOpenAI     = "openai"

	DiarizationPyannote = "pyannote"
	DiarizationNone     = "none"

	PolicyStrict        = "strict"
	PolicySingleSpeaker = "single-speaker"
)

type Config struct {
	OutDir      string `yaml:"out_dir"`
	CacheDir    string `yaml:"cache_dir"`
	ModelsDir   string `yaml:"models_dir"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	Concurrency int    `yaml:"concurrency"`
	Subtitles   bool   `yaml:"subtitles"`
	LogLevel    string `yaml:"log_level"`

	Transcription TranscriptionConfig `yaml:"transcription"`
	Diarization   DiarizationConfig   `yaml:"diarization"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Cache         CacheConfig         `yaml:"cache"`
	Store         StoreConfig         `yaml:"store"`
}

type TranscriptionConfig struct {
	Backend       string `yaml:"backend"` // "whispercpp" or "openai"
	WhisperBin    string `yaml:"whisper_bin"`
	WhisperModel  string `yaml:"whisper_model"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	// OpenAIAllowedHosts lists hosts trusted with the API key besides api.openai.com.
	OpenAIAllowedHosts []string `yaml:"openai_allowed_hosts"`
	OpenAIAPIKey       string   `yaml:"-"`
}

type DiarizationConfig struct {
	Backend  string `yaml:"backend"` // "pyannote" or "none"
	Policy   string `yaml:"policy"`  // "strict" or "single-speaker"
	Addr     string `yaml:"addr"`
	Speakers int    `yaml:"speakers"`
	HFToken  string `yaml:"-"`
}

type SummarizationConfig struct {
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	APIKey       string   `yaml:"-"`
}

type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type StoreConfig struct {
	CassandraHosts    []string `yaml:"cassandra_hosts"`
	CassandraKeyspace string   `yaml:"cassandra_keyspace"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		OutDir:      "out",
		CacheDir:    ".cache",
		FFmpegPath:  "ffmpeg",
		Concurrency: 4,
		LogLevel:    "info",
		Transcription: TranscriptionConfig{
			Backend:      BackendWhisperCPP,
			WhisperBin:   ".cache/bin/whisper.cpp",
			WhisperModel: ".cache/models/ggml-base.bin",
			OpenAIModel:  "whisper-1",
		},
		Diarization: DiarizationConfig{
			Backend: DiarizationPyannote,
			Policy:  PolicyStrict,
			Addr:    "localhost:50051",
		},
		Summarization: SummarizationConfig{
			Model:   "z-ai/glm-4.5-air:free",
			BaseURL: "https://openrouter.ai",
		},
		Cache: CacheConfig{TTL: 7 * 24 * time.Hour},
		Store: StoreConfig{CassandraKeyspace: "minutes"},
	}
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// environment overrides. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(expandTilde(path))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv(getenv)

	cfg.OutDir = expandTilde(cfg.OutDir)
	cfg.CacheDir = expandTilde(cfg.CacheDir)
	cfg.ModelsDir = expandTilde(cfg.ModelsDir)
	cfg.Transcription.WhisperBin = expandTilde(cfg.Transcription.WhisperBin)
	cfg.Transcription.WhisperModel = cfg.ResolveModelPath(cfg.Transcription.WhisperModel)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	env := envReader(getenv)
	c.LogLevel = env.str("LOG_LEVEL", c.LogLevel)
	c.ModelsDir = env.str("MODELS_DIR", c.ModelsDir)
	c.Concurrency = env.int("CONCURRENCY", c.Concurrency)

	c.Transcription.WhisperBin = env.str("WHISPER_BIN", c.Transcription.WhisperBin)
	c.Transcription.WhisperModel = env.str("WHISPER_MODEL", c.Transcription.WhisperModel)
	c.Transcription.OpenAIBaseURL = env.str("OPENAI_BASE_URL", c.Transcription.OpenAIBaseURL)
	c.Transcription.OpenAIAPIKey = env.str("OPENAI_API_KEY", c.Transcription.OpenAIAPIKey)
	c.Transcription.OpenAIAllowedHosts = env.list("OPENAI_ALLOWED_HOSTS", c.Transcription.OpenAIAllowedHosts)

	c.Diarization.HFToken = env.str("HF_TOKEN", c.Diarization.HFToken)
	c.Diarization.Addr = env.str("DIARIZATION_ADDR", c.Diarization.Addr)

	c.Summarization.APIKey = env.str("OPENROUTER_API_KEY", c.Summarization.APIKey)
	c.Summarization.Model = env.str("OPENROUTER_MODEL", c.Summarization.Model)
	c.Summarization.BaseURL = env.str("OPENROUTER_BASE_URL", c.Summarization.BaseURL)
	c.Summarization.AllowedHosts = env.list("OPENROUTER_ALLOWED_HOSTS", c.Summarization.AllowedHosts)

	c.Cache.RedisAddr = env.str("REDIS_ADDR", c.Cache.RedisAddr)
	c.Store.CassandraHosts = env.list("CASSANDRA_HOSTS", c.Store.CassandraHosts)
	c.Store.CassandraKeyspace = env.str("CASSANDRA_KEYSPACE", c.Store.CassandraKeyspace)
}

// ResolveModelPath expands ~ and places relative paths under ModelsDir when
// one is configured, so vendored weights can live outside the working tree.
func (c *Config) ResolveModelPath(p string) string {
	p = expandTilde(p)
	if p == "" || filepath.IsAbs(p) || c.ModelsDir == "" {
		return p
	}
	return filepath.Join(c.ModelsDir, filepath.Base(p))
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}

	switch c.Transcription.Backend {
	case BackendWhisperCPP:
		if c.Transcription.WhisperModel == "" {
			return fmt.Errorf("transcription.whisper_model must not be empty")
		}
	case BackendOpenAI:
	default:
		return fmt.Errorf("transcription.backend must be %q or %q, got %q", BackendWhisperCPP, BackendOpenAI, c.Transcription.Backend)
	}

	switch c.Diarization.Backend {
	case DiarizationPyannote, DiarizationNone:
	default:
		return fmt.Errorf("diarization.backend must be %q or %q, got %q", DiarizationPyannote, DiarizationNone, c.Diarization.Backend)
	}
	switch c.Diarization.Policy {
	case PolicyStrict, PolicySingleSpeaker:
	default:
		return fmt.Errorf("diarization.policy must be %q or %q, got %q", PolicyStrict, PolicySingleSpeaker, c.Diarization.Policy)
	}
	if c.Diarization.Speakers < 0 {
		return fmt.Errorf("diarization.speakers must be >= 0")
	}

	if len(c.Store.CassandraHosts) > 0 && c.Store.CassandraKeyspace == "" {
		return fmt.Errorf("store.cassandra_keyspace must not be empty when cassandra_hosts is set")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}

type envReader func(string) string

func (e envReader) str(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return def
}

func (e envReader) int(key string, def int) int {
	if v := strings.TrimSpace(e(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (e envReader) list(key string, def []string) []string {
	v := e(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
