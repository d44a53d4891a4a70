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

// Defaults applied by [applyDefaults] when fields are left unset.
const (
	DefaultMinAudioBytes          = 500
	DefaultAccurateThresholdBytes = 30000
	DefaultTranslationCacheSize   = 256
	DefaultLanguage               = "en"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "openai", "openai-direct", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp"},
	"stt": {"whisper", "whisper-native"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Audio.MinBytes <= 0 {
		cfg.Audio.MinBytes = DefaultMinAudioBytes
	}
	if cfg.Audio.AccurateThresholdBytes <= 0 {
		cfg.Audio.AccurateThresholdBytes = DefaultAccurateThresholdBytes
	}
	if cfg.Translation.CacheSize <= 0 {
		cfg.Translation.CacheSize = DefaultTranslationCacheSize
	}
	if cfg.Languages.Default == "" {
		cfg.Languages.Default = DefaultLanguage
	}
	if len(cfg.Languages.Supported) == 0 {
		cfg.Languages.Supported = []string{"en", "ta"}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Warn (don't fail) on unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required: the pipeline cannot transcribe without a speech engine"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; every stage will use its rule-based fallback path")
	}

	if cfg.Audio.AccurateThresholdBytes < cfg.Audio.MinBytes {
		errs = append(errs, fmt.Errorf("audio.accurate_threshold_bytes (%d) must not be below audio.min_bytes (%d)",
			cfg.Audio.AccurateThresholdBytes, cfg.Audio.MinBytes))
	}

	if !slices.Contains(cfg.Languages.Supported, cfg.Languages.Default) {
		errs = append(errs, fmt.Errorf("languages.default %q must be listed in languages.supported %v",
			cfg.Languages.Default, cfg.Languages.Supported))
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
