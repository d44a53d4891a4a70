package clinical

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/medvoice-ai/teachback/internal/transcript"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// symptomEntry maps a canonical symptom name to the surface forms that count
// as a mention of it.
type symptomEntry struct {
	canonical string
	keywords  []string
}

// symptomLexicon is scanned against patient lines. Order determines the
// order of symptoms in the extracted field.
var symptomLexicon = []symptomEntry{
	{"headache", []string{"headache", "head ache"}},
	{"fever", []string{"fever", "temperature"}},
	{"pain", []string{"pain", "ache", "aching", "hurts", "hurting"}},
	{"cough", []string{"cough", "coughing"}},
	{"body ache", []string{"body ache", "body pain"}},
	{"nausea", []string{"nausea", "nauseous"}},
	{"vomiting", []string{"vomiting", "vomit", "throwing up"}},
	{"diarrhea", []string{"diarrhea", "diarrhoea", "loose motion"}},
	{"dizziness", []string{"dizziness", "dizzy", "giddy"}},
}

var diagnosisTriggers = []string{
	"viral", "flu", "infection", "diagnosis", "appears to be", "looks like",
}

var medicationTriggers = []string{
	"prescribe", "prescribing", "tablet", "medication", "medicine",
	"mg", "ml", "dose", "dosage", "syrup", "capsule",
	"paracetamol", "ibuprofen", "antibiotic",
}

var followUpTriggers = []string{
	"follow up", "follow-up", "come back", "return", "revisit",
	"see me", "check back", "next week", "review",
}

// jaroWinklerThreshold is the similarity above which a transcribed word is
// accepted as a symptom keyword despite spelling drift. Speech recognition
// mangles symptom words routinely ("diarrhea" arrives as "diarrea"), so an
// exact substring scan alone misses real mentions.
const jaroWinklerThreshold = 0.92

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

// ExtractWithRules derives a ClinicalRecord from a speaker-labelled
// transcript using keyword and phonetic matching only. It is the cascade's
// terminal tier: deterministic and total.
func ExtractWithRules(text string) types.ClinicalRecord {
	doctorLines, patientLines := splitRoleLines(text)

	return types.ClinicalRecord{
		Symptoms:    extractSymptoms(patientLines),
		Diagnosis:   firstMatchingSentence(doctorLines, diagnosisTriggers),
		Medications: matchingSentences(doctorLines, medicationTriggers, 3, ". "),
		FollowUp:    matchingSentences(doctorLines, followUpTriggers, 2, ". "),
	}
}

// splitRoleLines attributes each line of a labelled transcript to the doctor
// or the patient and strips the labels. Unlabelled lines go to both roles so
// the rule tier still works on unlabelled input.
func splitRoleLines(text string) (doctor, patient []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "doctor"):
			doctor = append(doctor, stripLabel(line))
		case strings.HasPrefix(lower, "patient"):
			patient = append(patient, stripLabel(line))
		default:
			doctor = append(doctor, line)
			patient = append(patient, line)
		}
	}
	return doctor, patient
}

// stripLabel removes a leading "Doctor:" or "Patient:" marker.
func stripLabel(line string) string {
	if idx := strings.Index(line, ":"); idx >= 0 && idx < len("patient:")+1 {
		return strings.TrimSpace(line[idx+1:])
	}
	return line
}

// extractSymptoms scans patient lines against the symptom lexicon and joins
// the unique canonical names found, in lexicon order.
func extractSymptoms(patientLines []string) string {
	var found []string
	seen := make(map[string]bool)

	for _, entry := range symptomLexicon {
		for _, line := range patientLines {
			if seen[entry.canonical] {
				break
			}
			if lineMentions(line, entry.keywords) {
				seen[entry.canonical] = true
				found = append(found, entry.canonical)
			}
		}
	}
	return strings.Join(found, ", ")
}

// lineMentions reports whether line contains any of the keywords, first by
// substring, then by phonetic and edit-distance matching of single words.
func lineMentions(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	// Fuzzy pass for single-word keywords only; multi-word phrases are too
	// short per word to match reliably.
	words := wordRe.FindAllString(lower, -1)
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			continue
		}
		kwPrimary, kwSecondary := matchr.DoubleMetaphone(kw)
		for _, w := range words {
			if len(w) < 4 {
				continue
			}
			if matchr.JaroWinkler(w, kw, false) >= jaroWinklerThreshold {
				return true
			}
			p, s := matchr.DoubleMetaphone(w)
			if p != "" && (p == kwPrimary || p == kwSecondary) {
				return true
			}
			if s != "" && (s == kwPrimary || s == kwSecondary) {
				return true
			}
		}
	}
	return false
}

// firstMatchingSentence returns the first sentence across lines containing
// any trigger, or "".
func firstMatchingSentence(lines []string, triggers []string) string {
	for _, line := range lines {
		for _, sentence := range splitSentences(line) {
			if containsAny(sentence, triggers) {
				return strings.TrimSpace(sentence)
			}
		}
	}
	return ""
}

// matchingSentences collects up to max sentences containing any trigger,
// joined by sep.
func matchingSentences(lines []string, triggers []string, max int, sep string) string {
	var found []string
	for _, line := range lines {
		for _, sentence := range splitSentences(line) {
			if len(found) >= max {
				break
			}
			if containsAny(sentence, triggers) {
				found = append(found, strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sentence), ".")))
			}
		}
		if len(found) >= max {
			break
		}
	}
	return strings.Join(found, sep)
}

// splitSentences breaks a line into sentences on terminal punctuation.
func splitSentences(line string) []string {
	return transcript.SplitSentences(line)
}

// containsAny reports whether s contains any trigger, case-insensitively.
func containsAny(s string, triggers []string) bool {
	lower := strings.ToLower(s)
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
