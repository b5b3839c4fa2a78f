package caption

import "sync"

// PrefsStore holds per-participant language overrides plus the session-wide
// defaults they fall back to. It is the single-writer map the inbound
// data-channel handler (language_prefs messages) mutates; the STT adapter
// and translation dispatcher only read from it.
type PrefsStore struct {
	mu                    sync.Mutex
	prefs                 map[SpeakerId]ParticipantPrefs
	defaultSTTLanguage    string
	defaultTargetLanguage string
}

// NewPrefsStore creates a [PrefsStore] with session-wide defaults applied to
// any speaker without an explicit override.
func NewPrefsStore(defaultSTTLanguage, defaultTargetLanguage string) *PrefsStore {
	return &PrefsStore{
		prefs:                 make(map[SpeakerId]ParticipantPrefs),
		defaultSTTLanguage:    defaultSTTLanguage,
		defaultTargetLanguage: defaultTargetLanguage,
	}
}

// Upsert records speaker's language preferences, overlaying only the fields
// present in prefs over any prior entry.
func (s *PrefsStore) Upsert(speaker SpeakerId, prefs ParticipantPrefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.prefs[speaker]
	if prefs.STTLanguage != "" {
		existing.STTLanguage = prefs.STTLanguage
	}
	if prefs.TargetLanguage != "" {
		existing.TargetLanguage = prefs.TargetLanguage
	}
	s.prefs[speaker] = existing
}

// Forget drops speaker's overrides, e.g. on unsubscribe.
func (s *PrefsStore) Forget(speaker SpeakerId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, speaker)
}

// STTLanguage returns speaker's recognition-language hint: its override if
// set, else the session default (which may be empty, meaning "let the STT
// backend auto-detect").
func (s *PrefsStore) STTLanguage(speaker SpeakerId) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[speaker]; ok && p.STTLanguage != "" {
		return p.STTLanguage
	}
	return s.defaultSTTLanguage
}

// Languages returns the recognition language used for speaker's STT calls
// and the language its captions should be translated to. recognitionLang
// mirrors STTLanguage's fallback rules; targetLang falls back to the
// session default target language.
func (s *PrefsStore) Languages(speaker SpeakerId) (recognitionLang, targetLang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recognitionLang = s.defaultSTTLanguage
	targetLang = s.defaultTargetLanguage
	if p, ok := s.prefs[speaker]; ok {
		if p.STTLanguage != "" {
			recognitionLang = p.STTLanguage
		}
		if p.TargetLanguage != "" {
			targetLang = p.TargetLanguage
		}
	}
	return recognitionLang, targetLang
}
