package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper", "whisper-native"},
	"embeddings": {"openai", "ollama"},
	"textgen":    {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"audio":      {"wav"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Engine
	if cfg.Engine.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("engine.sample_rate %d must be positive", cfg.Engine.SampleRate))
	}
	if cfg.Engine.Channels < 0 || cfg.Engine.Channels > 2 {
		errs = append(errs, fmt.Errorf("engine.channels %d is out of range [1, 2]", cfg.Engine.Channels))
	}
	if cfg.Engine.ChunkSeconds < 0 {
		errs = append(errs, fmt.Errorf("engine.chunk_seconds %.2f must be positive", cfg.Engine.ChunkSeconds))
	}
	if cfg.Engine.SilenceThreshold < 0 || cfg.Engine.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("engine.silence_threshold %.3f is out of range [0, 1]", cfg.Engine.SilenceThreshold))
	}
	if cfg.Engine.SilenceSeconds < 0 {
		errs = append(errs, fmt.Errorf("engine.silence_seconds %.2f must not be negative", cfg.Engine.SilenceSeconds))
	}
	if cfg.Engine.ContextWindowSeconds < 0 {
		errs = append(errs, fmt.Errorf("engine.context_window_seconds %.2f must be positive", cfg.Engine.ContextWindowSeconds))
	}

	// Retrieval and answer tuning
	if cfg.Retrieval.TopK < 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k %d must not be negative", cfg.Retrieval.TopK))
	}
	if cfg.Answer.Temperature < 0 || cfg.Answer.Temperature > 2 {
		errs = append(errs, fmt.Errorf("answer.temperature %.2f is out of range [0, 2]", cfg.Answer.Temperature))
	}
	if cfg.Answer.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("answer.max_tokens %d must not be negative", cfg.Answer.MaxTokens))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("textgen", cfg.Providers.TextGen.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)

	// Provider availability warnings
	if cfg.Providers.TextGen.Name == "" {
		slog.Warn("no textgen provider configured; answer generation will not be available")
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; document retrieval will not be available")
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; passages will be held in memory and re-indexed on startup")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
