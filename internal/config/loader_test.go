package config

import (
	"strings"
	"testing"
)

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  stt:
    name: whisper-native
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Audio.MinBytes != DefaultMinAudioBytes {
		t.Errorf("MinBytes = %d, want %d", cfg.Audio.MinBytes, DefaultMinAudioBytes)
	}
	if cfg.Audio.AccurateThresholdBytes != DefaultAccurateThresholdBytes {
		t.Errorf("AccurateThresholdBytes = %d, want %d", cfg.Audio.AccurateThresholdBytes, DefaultAccurateThresholdBytes)
	}
	if cfg.Translation.CacheSize != DefaultTranslationCacheSize {
		t.Errorf("CacheSize = %d, want %d", cfg.Translation.CacheSize, DefaultTranslationCacheSize)
	}
	if cfg.Languages.Default != "en" {
		t.Errorf("Default language = %q, want en", cfg.Languages.Default)
	}
	if len(cfg.Languages.Supported) != 2 {
		t.Errorf("Supported = %v, want [en ta]", cfg.Languages.Supported)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
log_level: debug
providers:
  llm:
    name: gemini
    api_key: test-key
    model: gemini-2.0-flash
  stt:
    name: whisper
    base_url: http://localhost:8080
    options:
      language: auto
audio:
  min_bytes: 1000
  accurate_threshold_bytes: 60000
translation:
  enabled: true
  cache_size: 64
languages:
  default: en
  supported: [en, ta, hi]
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Providers.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("LLM model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Providers.STT.BaseURL != "http://localhost:8080" {
		t.Errorf("STT base URL = %q", cfg.Providers.STT.BaseURL)
	}
	if got := cfg.Providers.STT.Options["language"]; got != "auto" {
		t.Errorf("STT language option = %v", got)
	}
	if !cfg.Translation.Enabled || cfg.Translation.CacheSize != 64 {
		t.Errorf("Translation = %+v", cfg.Translation)
	}
}

func TestLoadFromReader_EmptyInputStillValidates(t *testing.T) {
	t.Parallel()

	// An empty file decodes cleanly but fails validation: there is no
	// speech engine to transcribe with.
	if _, err := LoadFromReader(strings.NewReader("")); err == nil {
		t.Fatal("expected validation error for empty config")
	}
}

func TestLoadFromReader_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
providers:
  stt:
    name: whisper
mistyped_section:
  value: 1
`))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing stt",
			`log_level: info`,
			"providers.stt.name is required",
		},
		{
			"bad log level",
			"log_level: loud\nproviders:\n  stt:\n    name: whisper",
			"log_level",
		},
		{
			"threshold below min",
			"providers:\n  stt:\n    name: whisper\naudio:\n  min_bytes: 5000\n  accurate_threshold_bytes: 1000",
			"accurate_threshold_bytes",
		},
		{
			"default not supported",
			"providers:\n  stt:\n    name: whisper\nlanguages:\n  default: ta\n  supported: [en]",
			"languages.default",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRegistry_CreateUnregistered(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if _, err := reg.CreateLLM(ProviderEntry{Name: "nope"}); err == nil {
		t.Fatal("expected ErrProviderNotRegistered")
	}
	if _, err := reg.CreateSTT(ProviderEntry{Name: "nope"}); err == nil {
		t.Fatal("expected ErrProviderNotRegistered")
	}
}
