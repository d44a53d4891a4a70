package main

import (
	"io"
	"strings"
)

// demoTranscript is a sample consultation used by -demo so the pipeline can
// be exercised without audio files or an STT backend.
const demoTranscript = `Doctor: Good morning. What brings you in today?
Patient: I have had a headache and fever since yesterday, and my whole body aches.
Doctor: Any cough or sore throat?
Patient: A mild cough, yes.
Doctor: This looks like a viral fever. I will prescribe Paracetamol 500mg, one tablet three times a day after food for five days.
Patient: Okay, doctor.
Doctor: Drink plenty of fluids and rest. Come back for a follow up in one week, or sooner if the fever goes above 103.
Patient: Thank you, doctor.`

// demoAnswers is a sample patient teach-back response covering medication
// and follow-up but leaving the warning-signs question unanswered.
const demoAnswers = `I should take the Paracetamol 500mg tablet three times a day after food for five days. I need to come back to see the doctor after one week.`

// demoConfig returns a minimal configuration for demo runs without a config
// file on disk.
func demoConfig() io.Reader {
	return strings.NewReader(`log_level: info
providers:
  stt:
    name: whisper-native
`)
}
