// Package types defines the shared value objects passed between pipeline
// stages: transcripts, clinical records, teach-back questions and answers,
// and patient reports.
package types

import "strings"

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}

// Transcript is the text produced by the transcription engine for one
// consultation recording, together with the auto-detected language tag.
// It is immutable once post-processing has finalised it.
type Transcript struct {
	// Text is the transcribed (and possibly speaker-labelled) text.
	Text string

	// Language is the detected BCP-47 language code (e.g., "en", "ta").
	Language string
}

// ClinicalRecord holds the four structured facts extracted from a
// consultation transcript. Each field is independently empty (explicit
// absence) or populated; an empty string is the "no value" sentinel and the
// four fields are always present.
type ClinicalRecord struct {
	Symptoms    string `json:"symptoms"`
	Diagnosis   string `json:"diagnosis"`
	Medications string `json:"medications"`
	FollowUp    string `json:"follow_up"`
}

// Empty reports whether all four fields are empty.
func (r ClinicalRecord) Empty() bool {
	return r.Symptoms == "" && r.Diagnosis == "" && r.Medications == "" && r.FollowUp == ""
}

// Complete reports whether all four fields are populated.
func (r ClinicalRecord) Complete() bool {
	return r.Symptoms != "" && r.Diagnosis != "" && r.Medications != "" && r.FollowUp != ""
}

// FillFrom copies each field from other into r only where r's field is still
// empty. Populated fields are never overwritten.
func (r *ClinicalRecord) FillFrom(other ClinicalRecord) {
	if r.Symptoms == "" {
		r.Symptoms = other.Symptoms
	}
	if r.Diagnosis == "" {
		r.Diagnosis = other.Diagnosis
	}
	if r.Medications == "" {
		r.Medications = other.Medications
	}
	if r.FollowUp == "" {
		r.FollowUp = other.FollowUp
	}
}

// Normalize trims surrounding whitespace from every field.
func (r *ClinicalRecord) Normalize() {
	r.Symptoms = strings.TrimSpace(r.Symptoms)
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	r.Medications = strings.TrimSpace(r.Medications)
	r.FollowUp = strings.TrimSpace(r.FollowUp)
}

// Dimension is the comprehension dimension a teach-back question verifies.
type Dimension string

const (
	// DimensionMedication verifies the patient knows how to take their medication.
	DimensionMedication Dimension = "medication"

	// DimensionFollowUp verifies the patient knows when to return.
	DimensionFollowUp Dimension = "follow-up"

	// DimensionWarning verifies the patient knows which symptoms require
	// immediate attention.
	DimensionWarning Dimension = "warning"

	// DimensionGeneral is the classification fallback for questions that match
	// none of the three fixed dimensions.
	DimensionGeneral Dimension = "general"
)

// TeachBackQuestion is one of exactly three comprehension questions generated
// from a ClinicalRecord. Questions are not mutated after creation.
type TeachBackQuestion struct {
	// Dimension identifies which comprehension dimension this question covers.
	Dimension Dimension

	// Text is the question shown to (and read to) the patient.
	Text string
}

// NoAnswerText is the sentinel answer text used when the patient's recording
// never addresses a question's topic.
const NoAnswerText = "No answer provided"

// TeachBackAnswer is the extracted response bound to one TeachBackQuestion,
// with an integer understanding score in [0,100].
type TeachBackAnswer struct {
	// Text is the summarised answer, or NoAnswerText when the topic never
	// appears in the recording.
	Text string

	// Score is the per-question understanding score in [0,100].
	Score int
}

// Answered reports whether this answer carries real content.
func (a TeachBackAnswer) Answered() bool {
	t := strings.TrimSpace(a.Text)
	return t != "" && !strings.EqualFold(t, NoAnswerText)
}

// PatientReport is the composed patient-facing document for a consultation.
type PatientReport struct {
	// Content is the full multi-section narrative.
	Content string

	// DiagnosisSummary is a short restatement of the diagnosis.
	DiagnosisSummary string

	// MedicationInstructions explains how to take each medication.
	MedicationInstructions string

	// WarningSigns lists symptoms that require immediate medical attention.
	WarningSigns string

	// Language is the BCP-47 code the report is written in.
	Language string
}
