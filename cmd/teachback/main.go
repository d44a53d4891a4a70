// Command teachback processes a recorded doctor-patient consultation: it
// transcribes the recording, extracts the clinical record, generates
// teach-back questions, scores the patient's recorded answers, and composes
// the patient report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/medvoice-ai/teachback/internal/config"
	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/internal/pipeline"
	"github.com/medvoice-ai/teachback/internal/translate/googletx"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/provider/llm/anyllm"
	oaillm "github.com/medvoice-ai/teachback/pkg/provider/llm/openai"
	"github.com/medvoice-ai/teachback/pkg/provider/stt"
	"github.com/medvoice-ai/teachback/pkg/provider/stt/whisper"
	"github.com/medvoice-ai/teachback/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "path to the consultation recording")
	answersPath := flag.String("answers", "", "path to the patient's recorded teach-back answers")
	lang := flag.String("lang", "", "patient language for the report (e.g. ta); defaults to the configured default")
	outPath := flag.String("out", "", "write the session result JSON to this file instead of stdout")
	demo := flag.Bool("demo", false, "run against a built-in sample consultation instead of audio files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *demo && errors.Is(err, os.ErrNotExist) {
			// Demo mode works without a config file.
			cfg, err = config.LoadFromReader(demoConfig())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "teachback: %v\n", err)
			return 1
		}
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("teachback starting",
		"config", *configPath,
		"llm", cfg.Providers.LLM.Name,
		"stt", cfg.Providers.STT.Name,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.Init(ctx)
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, backend, err := buildProviders(cfg, reg, *demo)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	opts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithDefaultLanguage(cfg.Languages.Default),
		pipeline.WithAudioThresholds(cfg.Audio.MinBytes, cfg.Audio.AccurateThresholdBytes),
		pipeline.WithTranslationCacheSize(cfg.Translation.CacheSize),
	}
	if cfg.Translation.Enabled {
		var txOpts []googletx.Option
		if cfg.Translation.Endpoint != "" {
			txOpts = append(txOpts, googletx.WithEndpoint(cfg.Translation.Endpoint))
		}
		opts = append(opts, pipeline.WithBulkTranslator(googletx.New(txOpts...)))
	}
	pipe := pipeline.New(backend, provider, opts...)

	target := *lang
	if target == "" {
		target = cfg.Languages.Default
	}
	if !supportedLanguage(cfg, target) {
		slog.Error("unsupported language", "lang", target, "supported", cfg.Languages.Supported)
		return 1
	}

	session, err := runSession(ctx, pipe, *audioPath, *answersPath, target, *demo)
	if err != nil {
		slog.Error("session failed", "err", err)
		return 1
	}

	if err := writeResult(*outPath, session); err != nil {
		slog.Error("failed to write result", "err", err)
		return 1
	}
	slog.Info("session complete", "overall_score", session.TeachBack.OverallScore)
	return 0
}

// sessionResult is the JSON document one run produces.
type sessionResult struct {
	Transcript types.Transcript          `json:"transcript"`
	Record     types.ClinicalRecord      `json:"record"`
	Questions  []types.TeachBackQuestion `json:"questions"`
	TeachBack  pipeline.TeachBackResult  `json:"teach_back"`
	Report     types.PatientReport       `json:"report"`
}

// runSession drives one consultation end to end.
func runSession(ctx context.Context, pipe *pipeline.Pipeline, audioPath, answersPath, target string, demo bool) (*sessionResult, error) {
	var (
		transcript types.Transcript
		err        error
	)
	switch {
	case demo:
		transcript = types.Transcript{Text: demoTranscript, Language: "en"}
	case audioPath != "":
		audio, rerr := os.ReadFile(audioPath)
		if rerr != nil {
			return nil, fmt.Errorf("read audio: %w", rerr)
		}
		transcript, err = pipe.Transcribe(ctx, audio, extOf(audioPath))
		if err != nil {
			return nil, fmt.Errorf("transcribe consultation: %w", err)
		}
	default:
		return nil, errors.New("no input: pass -audio or -demo")
	}

	record := pipe.ExtractRecord(ctx, transcript)
	questions := pipe.GenerateQuestions(ctx, record)

	answerText := ""
	switch {
	case demo:
		answerText = demoAnswers
	case answersPath != "":
		audio, rerr := os.ReadFile(answersPath)
		if rerr != nil {
			return nil, fmt.Errorf("read answers: %w", rerr)
		}
		at, terr := pipe.Transcribe(ctx, audio, extOf(answersPath))
		if terr != nil {
			return nil, fmt.Errorf("transcribe answers: %w", terr)
		}
		answerText = at.Text
	}

	result := pipe.ScoreTeachBack(ctx, questions, answerText, record)
	report := pipe.ComposeReport(ctx, record, target)

	localizedQuestions := pipe.LocalizeQuestions(ctx, questions, target)

	return &sessionResult{
		Transcript: transcript,
		Record:     record,
		Questions:  localizedQuestions,
		TeachBack:  result,
		Report:     report,
	}, nil
}

func writeResult(path string, session *sessionResult) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// All any-llm backends share the same pattern: optional APIKey plus
	// optional BaseURL.
	for _, providerName := range []string{
		"gemini", "openai", "anthropic", "deepseek", "mistral", "groq", "llamacpp",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// openai-direct talks to the OpenAI API through the official client
	// rather than the any-llm abstraction.
	reg.RegisterLLM("openai-direct", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []whisper.ServerOption
		if entry.Model != "" {
			opts = append(opts, whisper.WithServerModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithServerLanguage(lang))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Engine, error) {
		modelPath := entry.ModelPath
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. The STT backend is
// optional in demo mode; the LLM provider is always optional because every
// stage has a non-generative fallback.
func buildProviders(cfg *config.Config, reg *config.Registry, demo bool) (llm.Provider, stt.Engine, error) {
	var provider llm.Provider
	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		provider = p
		slog.Info("provider created", "kind", "llm", "name", name)
	} else {
		slog.Warn("no llm provider configured, running deterministic tiers only")
	}

	var backend stt.Engine
	if name := cfg.Providers.STT.Name; name != "" {
		b, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			if demo {
				slog.Warn("stt backend unavailable, demo mode continues without it", "err", err)
				return provider, nil, nil
			}
			return nil, nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		backend = b
		slog.Info("provider created", "kind", "stt", "name", name)
	} else if !demo {
		return nil, nil, errors.New("no stt provider configured")
	}

	return provider, backend, nil
}

func supportedLanguage(cfg *config.Config, lang string) bool {
	for _, s := range cfg.Languages.Supported {
		if s == lang {
			return true
		}
	}
	return false
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// extOf returns the lowercase file extension without the dot, used as the
// decode format hint.
func extOf(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return ""
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
