// Package report composes the patient-facing discharge document from a
// clinical record. The narrative path is generative with a deterministic
// template fallback, so composition never fails outright.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/internal/translate"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// minNarrativeChars is the shortest generative narrative accepted as usable.
// Anything shorter is treated as a degenerate completion and replaced by the
// deterministic template.
const minNarrativeChars = 50

// warningBoilerplate is the fixed warning-signs text used when no focused
// extraction is possible.
const warningBoilerplate = "If your symptoms get worse, you develop a high fever, " +
	"difficulty breathing, severe pain, or confusion, seek medical care immediately."

// Composer builds patient reports. The provider may be nil, in which case
// every section comes from the deterministic template. The translator may be
// nil, in which case reports stay in the default language.
type Composer struct {
	llm        llm.Provider
	translator *translate.Layer
	metrics    *observe.Metrics
}

// Option is a functional option for configuring a Composer.
type Option func(*Composer)

// WithTranslator sets the translation layer used to render reports in the
// patient's language.
func WithTranslator(t *translate.Layer) Option {
	return func(c *Composer) { c.translator = t }
}

// WithMetrics sets the metrics instance used to record composition tiers.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Composer) { c.metrics = m }
}

// NewComposer creates a Composer over the given provider.
func NewComposer(p llm.Provider, opts ...Option) *Composer {
	c := &Composer{llm: p}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose builds the patient report for a consultation. The narrative is
// generated from the clinical record when a provider is available and falls
// back to a deterministic template otherwise. When language differs from the
// translator's default, every section is rendered in that language.
func (c *Composer) Compose(ctx context.Context, record types.ClinicalRecord, language string) types.PatientReport {
	ctx, span := observe.StartSpan(ctx, "report.compose")
	defer span.End()

	report := types.PatientReport{
		DiagnosisSummary:       record.Diagnosis,
		MedicationInstructions: record.Medications,
		Language:               language,
	}

	report.Content = c.composeNarrative(ctx, record)
	report.WarningSigns = c.extractWarningSigns(ctx, record)

	if c.translator != nil {
		localized := c.translator.TranslateBatch(ctx, map[string]string{
			"content":     report.Content,
			"diagnosis":   report.DiagnosisSummary,
			"medications": report.MedicationInstructions,
			"warnings":    report.WarningSigns,
		}, language)
		report.Content = localized["content"]
		report.DiagnosisSummary = localized["diagnosis"]
		report.MedicationInstructions = localized["medications"]
		report.WarningSigns = localized["warnings"]
	}
	return report
}

// composeNarrative produces the full report body. The generative tier is
// accepted only when it returns a plausible narrative; otherwise the
// deterministic template takes over.
func (c *Composer) composeNarrative(ctx context.Context, record types.ClinicalRecord) string {
	if c.llm == nil {
		c.recordTier(ctx, "template")
		return TemplateNarrative(record)
	}

	prompt := fmt.Sprintf(
		"Write a short patient discharge summary based on the consultation notes "+
			"below. Use simple, reassuring language a patient can understand. "+
			"Structure it as: what was found, what medicine to take and how, when to "+
			"come back, and what symptoms mean you should seek care right away. Keep "+
			"all drug names and dosages exactly as written. Return only the summary.\n\n"+
			"Symptoms: %s\nDiagnosis: %s\nMedications: %s\nFollow-up: %s",
		valueOr(record.Symptoms, "not recorded"),
		valueOr(record.Diagnosis, "not recorded"),
		valueOr(record.Medications, "none prescribed"),
		valueOr(record.FollowUp, "none scheduled"))

	start := time.Now()
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.4,
	})
	if c.metrics != nil {
		c.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("stage", "report")))
	}
	if err != nil || resp == nil {
		observe.Logger(ctx).Warn("report generation failed, using template", "error", err)
		if c.metrics != nil {
			c.metrics.RecordModelError(ctx, "llm", "report")
		}
		c.recordTier(ctx, "template")
		return TemplateNarrative(record)
	}

	narrative := strings.TrimSpace(resp.Content)
	if len(narrative) < minNarrativeChars {
		observe.Logger(ctx).Warn("report narrative too short, using template",
			"length", len(narrative))
		c.recordTier(ctx, "template")
		return TemplateNarrative(record)
	}
	c.recordTier(ctx, "generative")
	return narrative
}

// extractWarningSigns derives the warning-signs section from the follow-up
// instructions, which carry the "return if" conditions. Failures and empty
// completions fall back to the fixed boilerplate so this section is never
// blank.
func (c *Composer) extractWarningSigns(ctx context.Context, record types.ClinicalRecord) string {
	if c.llm == nil || record.FollowUp == "" {
		return warningBoilerplate
	}

	prompt := fmt.Sprintf(
		"Extract the warning signs or red flags from this follow-up instruction. "+
			"List in 2-3 short sentences the signs that mean the patient should seek "+
			"medical care immediately. Return only the warning signs, no preamble.\n\n"+
			"Follow-up: %s",
		record.FollowUp)

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		observe.Logger(ctx).Debug("warning-sign extraction failed, using boilerplate", "error", err)
		return warningBoilerplate
	}
	return strings.TrimSpace(resp.Content)
}

// TemplateNarrative renders the deterministic report body from the clinical
// record alone.
func TemplateNarrative(record types.ClinicalRecord) string {
	var b strings.Builder

	b.WriteString("Your Visit Summary\n\n")

	if record.Symptoms != "" {
		fmt.Fprintf(&b, "You came in with: %s.\n\n", strings.TrimSuffix(record.Symptoms, "."))
	}
	if record.Diagnosis != "" {
		fmt.Fprintf(&b, "What we found: %s.\n\n", strings.TrimSuffix(record.Diagnosis, "."))
	} else {
		b.WriteString("What we found: please discuss your diagnosis with your doctor.\n\n")
	}
	if record.Medications != "" {
		fmt.Fprintf(&b, "Your medication: %s.\n\n", strings.TrimSuffix(record.Medications, "."))
	} else {
		b.WriteString("Your medication: no medication was prescribed at this visit.\n\n")
	}
	if record.FollowUp != "" {
		fmt.Fprintf(&b, "Follow-up: %s.\n\n", strings.TrimSuffix(record.FollowUp, "."))
	} else {
		b.WriteString("Follow-up: no follow-up visit was scheduled.\n\n")
	}

	b.WriteString("When to seek help: ")
	b.WriteString(warningBoilerplate)
	return b.String()
}

func (c *Composer) recordTier(ctx context.Context, tier string) {
	if c.metrics != nil {
		c.metrics.RecordTier(ctx, "report", tier)
	}
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
