package caption

import (
	"context"
	"errors"
	"testing"

	"github.com/oakfield-labs/captionrelay/pkg/provider/llm"
	llmmock "github.com/oakfield-labs/captionrelay/pkg/provider/llm/mock"
)

func TestTranslatorSkipsWhenTargetEqualsRecognitionLanguage(t *testing.T) {
	prefs := NewPrefsStore("en", "en")
	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "should not be used"}}
	pub := &recordingPublisher{}
	tr := NewLLMTranslator(provider, prefs, pub)

	tr.Translate(context.Background(), "p1", 1, "Hello world.")

	if len(provider.CompleteCalls) != 0 {
		t.Errorf("expected no completion call when languages match, got %d", len(provider.CompleteCalls))
	}
	if len(pub.snapshot()) != 0 {
		t.Errorf("expected no published record when languages match")
	}
}

func TestTranslatorSkipsWhenNoTargetLanguageConfigured(t *testing.T) {
	prefs := NewPrefsStore("en", "")
	provider := &llmmock.Provider{}
	pub := &recordingPublisher{}
	tr := NewLLMTranslator(provider, prefs, pub)

	tr.Translate(context.Background(), "p1", 1, "Hello world.")

	if len(provider.CompleteCalls) != 0 {
		t.Errorf("expected no completion call without a target language")
	}
}

func TestTranslatorPublishesOnSuccess(t *testing.T) {
	prefs := NewPrefsStore("en", "es")
	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hola mundo."}}
	pub := &recordingPublisher{}
	tr := NewLLMTranslator(provider, prefs, pub)

	tr.Translate(context.Background(), "p1", 1, "Hello world.")

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("expected one completion call, got %d", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.Text != "Hello world." {
		t.Errorf("req.Text = %q", req.Text)
	}
	if req.Temperature != DefaultTranslateTemperature || req.MaxTokens != DefaultTranslateMaxTokens {
		t.Errorf("req params = %+v, want defaults", req)
	}

	recs := pub.snapshot()
	if len(recs) != 1 {
		t.Fatalf("expected one published record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Type != RecordTypeTranslation || rec.OriginalText != "Hello world." ||
		rec.TranslatedText != "Hola mundo." || rec.TargetLanguage != "es" || rec.SentenceID != 1 {
		t.Errorf("published record = %+v", rec)
	}
}

func TestTranslatorDropsOnCompletionError(t *testing.T) {
	prefs := NewPrefsStore("en", "fr")
	provider := &llmmock.Provider{CompleteErr: errors.New("backend unavailable")}
	pub := &recordingPublisher{}
	tr := NewLLMTranslator(provider, prefs, pub)

	tr.Translate(context.Background(), "p1", 1, "Hello world.")

	if len(pub.snapshot()) != 0 {
		t.Errorf("expected no published record after a completion error")
	}
}

func TestTranslatorUsesPerParticipantTargetOverride(t *testing.T) {
	prefs := NewPrefsStore("en", "es")
	prefs.Upsert("p1", ParticipantPrefs{TargetLanguage: "fr"})
	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Bonjour."}}
	pub := &recordingPublisher{}
	tr := NewLLMTranslator(provider, prefs, pub)

	tr.Translate(context.Background(), "p1", 1, "Hello.")
	tr.Translate(context.Background(), "p2", 2, "Hello.")

	recs := pub.snapshot()
	if len(recs) != 2 {
		t.Fatalf("expected two published records, got %d", len(recs))
	}
	if recs[0].TargetLanguage != "fr" {
		t.Errorf("p1 targetLanguage = %q, want fr (override)", recs[0].TargetLanguage)
	}
	if recs[1].TargetLanguage != "es" {
		t.Errorf("p2 targetLanguage = %q, want es (session default)", recs[1].TargetLanguage)
	}
}
