package caption

import (
	"context"
	"fmt"
	"time"

	"github.com/oakfield-labs/captionrelay/internal/observe"
	"github.com/oakfield-labs/captionrelay/pkg/provider/llm"
)

// Default translation-request parameters: low temperature and a small
// token budget keep a one-sentence translation deterministic and cheap.
const (
	DefaultTranslateTemperature = 0.1
	DefaultTranslateMaxTokens   = 100
)

// TranslatorOption configures an [LLMTranslator] at construction.
type TranslatorOption func(*LLMTranslator)

// WithTranslateTemperature overrides the default sampling temperature.
func WithTranslateTemperature(t float64) TranslatorOption {
	return func(tr *LLMTranslator) { tr.temperature = t }
}

// WithTranslateMaxTokens overrides the default completion token budget.
func WithTranslateMaxTokens(n int) TranslatorOption {
	return func(tr *LLMTranslator) { tr.maxTokens = n }
}

// WithTranslatorMetrics wires translation-dispatch latency and provider
// request/error counters into m.
func WithTranslatorMetrics(m *observe.Metrics) TranslatorOption {
	return func(tr *LLMTranslator) { tr.metrics = m }
}

// LLMTranslator implements [Translator] (C7): it resolves the recognition
// and target language for a speaker, skips when they match, and otherwise
// asks an [llm.Provider] for a one-shot translation before publishing the
// result.
type LLMTranslator struct {
	provider  llm.Provider
	prefs     *PrefsStore
	publisher Publisher
	metrics   *observe.Metrics

	temperature float64
	maxTokens   int
}

// NewLLMTranslator creates an [LLMTranslator]. provider performs the actual
// completion call (commonly an [resilience.LLMFallback] wrapping a primary
// and fallback backend); prefs resolves per-speaker language overrides;
// publisher receives the resulting translation record.
func NewLLMTranslator(provider llm.Provider, prefs *PrefsStore, publisher Publisher, opts ...TranslatorOption) *LLMTranslator {
	tr := &LLMTranslator{
		provider:    provider,
		prefs:       prefs,
		publisher:   publisher,
		temperature: DefaultTranslateTemperature,
		maxTokens:   DefaultTranslateMaxTokens,
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// Translate implements [Translator]. Skip condition is recognitionLang ==
// targetLang — not a literal "en" sentinel, so a non-English recognition
// language that happens to match its own target is still skipped correctly.
func (tr *LLMTranslator) Translate(ctx context.Context, speaker SpeakerId, sentenceID int, text string) {
	recognitionLang, targetLang := tr.prefs.Languages(speaker)
	if targetLang == "" || recognitionLang == targetLang {
		return
	}

	ctx, span := observe.StartSpan(ctx, "caption.translate")
	defer span.End()

	req := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf("Translate the following text to %s. Return only the translation, no additional text.", targetLang),
		Text:         text,
		Temperature:  tr.temperature,
		MaxTokens:    tr.maxTokens,
	}

	start := time.Now()
	resp, err := tr.provider.Complete(ctx, req)
	if tr.metrics != nil {
		tr.metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())
		tr.metrics.RecordProviderRequest(ctx, "llm", "translate", statusOf(err))
	}
	if err != nil {
		if tr.metrics != nil {
			tr.metrics.RecordProviderError(ctx, "llm", "translate")
		}
		observe.Logger(ctx).Warn("translator: completion failed",
			"speaker", speaker, "sentenceId", sentenceID, "error", err)
		return
	}

	rec := CaptionRecord{
		Type:           RecordTypeTranslation,
		Speaker:        speaker,
		SentenceID:     sentenceID,
		OriginalText:   text,
		TranslatedText: resp.Content,
		TargetLanguage: targetLang,
		Timestamp:      time.Now(),
	}
	tr.publisher.Publish(ctx, rec)
}

var _ Translator = (*LLMTranslator)(nil)
