// Package pipeline assembles the consultation stages into one service
// object. The Pipeline owns no global state; callers construct one per
// configuration and pass it around explicitly.
package pipeline

import (
	"context"

	"github.com/medvoice-ai/teachback/internal/clinical"
	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/internal/report"
	"github.com/medvoice-ai/teachback/internal/teachback"
	"github.com/medvoice-ai/teachback/internal/transcribe"
	"github.com/medvoice-ai/teachback/internal/transcript"
	"github.com/medvoice-ai/teachback/internal/translate"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/provider/stt"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// TeachBackResult bundles the outcome of a scored teach-back session.
type TeachBackResult struct {
	// Questions are the three questions the answers were matched against.
	Questions []types.TeachBackQuestion

	// Answers holds one scored answer per question, in question order.
	Answers []types.TeachBackAnswer

	// OverallScore is the discharge-readiness score in [0,100].
	OverallScore int
}

// Pipeline wires the consultation stages together. All stages tolerate a nil
// generative provider by degrading to their deterministic tiers; only the
// transcription backend is mandatory.
type Pipeline struct {
	transcriber   *transcribe.Engine
	postProcessor *transcript.PostProcessor
	extractor     *clinical.Extractor
	teachBack     *teachback.Engine
	translator    *translate.Layer
	composer      *report.Composer
}

// Option is a functional option for configuring a Pipeline.
type Option func(*options)

type options struct {
	metrics     *observe.Metrics
	bulk        translate.Bulk
	defaultLang string
	cacheSize   int
	audio       []transcribe.Option
}

// WithMetrics sets the metrics instance shared by all stages.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBulkTranslator sets the bulk translator used by the translation
// layer's fast path. Without one, only generative translation runs.
func WithBulkTranslator(b translate.Bulk) Option {
	return func(o *options) { o.bulk = b }
}

// WithDefaultLanguage sets the language translation is a no-op for.
func WithDefaultLanguage(lang string) Option {
	return func(o *options) { o.defaultLang = lang }
}

// WithTranslationCacheSize bounds the bulk translation cache.
func WithTranslationCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithAudioThresholds forwards minimum-size and quality thresholds to the
// transcription engine.
func WithAudioThresholds(minBytes, accurateThreshold int) Option {
	return func(o *options) {
		o.audio = append(o.audio, transcribe.WithThresholds(minBytes, accurateThreshold))
	}
}

// New assembles a Pipeline over the given transcription backend and
// generative provider. The provider may be nil.
func New(backend stt.Engine, provider llm.Provider, opts ...Option) *Pipeline {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	transcribeOpts := o.audio
	if o.metrics != nil {
		transcribeOpts = append(transcribeOpts, transcribe.WithMetrics(o.metrics))
	}

	var translateOpts []translate.Option
	if o.defaultLang != "" {
		translateOpts = append(translateOpts, translate.WithDefaultLanguage(o.defaultLang))
	}
	if o.cacheSize > 0 {
		translateOpts = append(translateOpts, translate.WithCacheSize(o.cacheSize))
	}
	if o.metrics != nil {
		translateOpts = append(translateOpts, translate.WithMetrics(o.metrics))
	}
	translator := translate.NewLayer(o.bulk, provider, translateOpts...)

	var extractorOpts []clinical.Option
	var teachBackOpts []teachback.Option
	composerOpts := []report.Option{report.WithTranslator(translator)}
	if o.metrics != nil {
		extractorOpts = append(extractorOpts, clinical.WithMetrics(o.metrics))
		teachBackOpts = append(teachBackOpts, teachback.WithMetrics(o.metrics))
		composerOpts = append(composerOpts, report.WithMetrics(o.metrics))
	}

	return &Pipeline{
		transcriber:   transcribe.New(backend, transcribeOpts...),
		postProcessor: transcript.NewPostProcessor(provider),
		extractor:     clinical.NewExtractor(provider, extractorOpts...),
		teachBack:     teachback.NewEngine(provider, teachBackOpts...),
		translator:    translator,
		composer:      report.NewComposer(provider, composerOpts...),
	}
}

// Transcribe converts a consultation recording into a cleaned,
// speaker-labelled transcript.
func (p *Pipeline) Transcribe(ctx context.Context, audio []byte, formatHint string) (types.Transcript, error) {
	t, err := p.transcriber.Transcribe(ctx, audio, formatHint)
	if err != nil {
		return types.Transcript{}, err
	}
	t.Text = p.postProcessor.CleanAndLabel(ctx, t.Text)
	return t, nil
}

// ExtractRecord pulls the structured clinical record out of a transcript.
func (p *Pipeline) ExtractRecord(ctx context.Context, t types.Transcript) types.ClinicalRecord {
	return p.extractor.Extract(ctx, t.Text)
}

// GenerateQuestions produces the three teach-back questions for a record.
func (p *Pipeline) GenerateQuestions(ctx context.Context, record types.ClinicalRecord) []types.TeachBackQuestion {
	return p.teachBack.GenerateQuestions(ctx, record)
}

// ScoreTeachBack extracts per-question answers from the patient's recorded
// response, scores each against the clinical record, and computes the
// overall discharge-readiness score.
func (p *Pipeline) ScoreTeachBack(ctx context.Context, questions []types.TeachBackQuestion, answerTranscript string, record types.ClinicalRecord) TeachBackResult {
	ctx, span := observe.StartSpan(ctx, "pipeline.score_teach_back")
	defer span.End()

	texts := p.teachBack.ExtractAnswers(ctx, questions, answerTranscript)

	answers := make([]types.TeachBackAnswer, len(questions))
	for i, q := range questions {
		answers[i] = types.TeachBackAnswer{
			Text:  texts[i],
			Score: p.teachBack.Score(ctx, q, texts[i], record),
		}
	}

	return TeachBackResult{
		Questions:    questions,
		Answers:      answers,
		OverallScore: p.teachBack.OverallScore(ctx, questions, answers, record),
	}
}

// ComposeReport builds the patient-facing report in the given language.
func (p *Pipeline) ComposeReport(ctx context.Context, record types.ClinicalRecord, language string) types.PatientReport {
	return p.composer.Compose(ctx, record, language)
}

// LocalizeRecord renders every populated record field in the target
// language. Drug names and dosages survive translation via the sensitive
// path.
func (p *Pipeline) LocalizeRecord(ctx context.Context, record types.ClinicalRecord, language string) types.ClinicalRecord {
	localized := p.translator.TranslateBatch(ctx, map[string]string{
		"symptoms":    record.Symptoms,
		"diagnosis":   record.Diagnosis,
		"medications": record.Medications,
		"follow_up":   record.FollowUp,
	}, language)
	return types.ClinicalRecord{
		Symptoms:    localized["symptoms"],
		Diagnosis:   localized["diagnosis"],
		Medications: localized["medications"],
		FollowUp:    localized["follow_up"],
	}
}

// LocalizeQuestions renders each question in the target language, keeping
// the dimension bindings.
func (p *Pipeline) LocalizeQuestions(ctx context.Context, questions []types.TeachBackQuestion, language string) []types.TeachBackQuestion {
	out := make([]types.TeachBackQuestion, len(questions))
	for i, q := range questions {
		out[i] = types.TeachBackQuestion{
			Dimension: q.Dimension,
			Text:      p.translator.Translate(ctx, q.Text, language),
		}
	}
	return out
}
