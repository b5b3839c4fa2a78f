// Package caption implements the per-speaker streaming transcription
// pipeline: the filter & dedup gate, the sentence assembler state machine,
// the translation dispatcher, and the outbound publisher. Frame aggregation
// lives in pkg/audio; the STT/LLM provider calls live in pkg/provider/*.
// This package is where those pieces are composed into one pipeline per
// subscribed speaker.
package caption

import "time"

// SpeakerId is the conferencing layer's stable identity for a remote
// participant. It doubles as the map key for per-speaker pipeline state.
type SpeakerId = string

// CaptionRecord is the wire-level shape published on the "captions" data
// channel topic, covering both transcription and translation records. Only
// the fields relevant to RecordType are populated; json "omitempty" keeps
// the wire payload tight.
type CaptionRecord struct {
	Type string `json:"type"` // "transcription" | "translation"

	Speaker    string `json:"speaker"`
	SentenceID int    `json:"sentenceId"`
	Final      bool   `json:"final"`

	// Populated for Type == "transcription".
	Text string `json:"text,omitempty"`

	// Populated for Type == "translation".
	OriginalText   string `json:"originalText,omitempty"`
	TranslatedText string `json:"translatedText,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

const (
	RecordTypeTranscription = "transcription"
	RecordTypeTranslation   = "translation"
)

// ParticipantPrefs holds per-speaker language overrides received over the
// data channel. A zero value means "use session defaults" for both fields.
type ParticipantPrefs struct {
	STTLanguage    string
	TargetLanguage string
}

// LanguagePrefsMessage is the inbound data-channel payload that upserts a
// [ParticipantPrefs] entry.
type LanguagePrefsMessage struct {
	Type           string `json:"type"` // "language_prefs"
	ParticipantID  string `json:"participantId"`
	STTLanguage    string `json:"sttLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

const languagePrefsType = "language_prefs"
