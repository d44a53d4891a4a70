// Package config provides the configuration schema, loader, and provider
// registry for the teach-back consultation pipeline.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`

	Providers   ProvidersConfig   `yaml:"providers"`
	Audio       AudioConfig       `yaml:"audio"`
	Translation TranslationConfig `yaml:"translation"`
	Languages   LanguagesConfig   `yaml:"languages"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// LLM selects the generative model provider. May be left empty: every
	// pipeline stage has a non-generative fallback path.
	LLM ProviderEntry `yaml:"llm"`

	// STT selects the speech-to-text engine. Required for transcription.
	STT ProviderEntry `yaml:"stt"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "gemini", "whisper-native").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint, or holds the
	// server URL for server-backed STT engines.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gemini-2.0-flash").
	Model string `yaml:"model"`

	// ModelPath is the local model file path for in-process STT engines.
	ModelPath string `yaml:"model_path"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// AudioConfig holds input validation thresholds for uploaded recordings.
type AudioConfig struct {
	// MinBytes is the minimum encoded audio size accepted. Recordings below
	// this threshold are rejected as a user error before any decode is
	// attempted. Defaults to 500.
	MinBytes int `yaml:"min_bytes"`

	// AccurateThresholdBytes is the encoded size above which the
	// high-quality decode configuration is selected. Defaults to 30000.
	AccurateThresholdBytes int `yaml:"accurate_threshold_bytes"`
}

// TranslationConfig holds settings for the translation layer.
type TranslationConfig struct {
	// Enabled turns the translation layer on. When false all patient-facing
	// text stays in the default language.
	Enabled bool `yaml:"enabled"`

	// Endpoint overrides the bulk translator's default endpoint. Leave
	// empty to use the built-in default.
	Endpoint string `yaml:"endpoint"`

	// CacheSize bounds the bulk translation cache (entries). Defaults to 256.
	CacheSize int `yaml:"cache_size"`
}

// LanguagesConfig declares the default and supported patient languages.
type LanguagesConfig struct {
	// Default is the language consultations are processed in when no target
	// is requested. Defaults to "en".
	Default string `yaml:"default"`

	// Supported lists the BCP-47 codes patient-facing text may be rendered
	// in. Defaults to ["en", "ta"].
	Supported []string `yaml:"supported"`
}
