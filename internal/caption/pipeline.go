package caption

import (
	"context"
	"strings"
	"time"

	"github.com/oakfield-labs/captionrelay/internal/observe"
	"github.com/oakfield-labs/captionrelay/pkg/audio"
	"github.com/oakfield-labs/captionrelay/pkg/provider/stt"
)

// PipelineOption configures a [Pipeline] at construction.
type PipelineOption func(*Pipeline)

// WithSTTModel overrides the model id sent with every transcription
// request.
func WithSTTModel(model string) PipelineOption {
	return func(p *Pipeline) { p.sttModel = model }
}

// WithAggregatorOptions passes through frame-aggregator tuning (window
// size, overlap, VAD threshold) to every speaker's [audio.Aggregator].
func WithAggregatorOptions(opts ...audio.AggregatorOption) PipelineOption {
	return func(p *Pipeline) { p.aggregatorOpts = append(p.aggregatorOpts, opts...) }
}

// WithPipelineMetrics wires STT latency, acceptance, and provider-error
// counters into m.
func WithPipelineMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline drives one subscribed audio track through the frame aggregator
// (C3), the STT adapter (C4), and the filter & dedup gate (C5), handing
// every accepted slice to the shared sentence assembler (C6). The
// assembler in turn invokes the translation dispatcher (C7) and outbound
// publisher (C8) on finalization.
//
// The STT provider, filter, assembler, and language-prefs store are shared
// across every speaker in a room, and Pipeline itself holds no per-speaker
// state, so one instance serves every track; each Run call creates its own
// [audio.Aggregator], which is not shared.
type Pipeline struct {
	stt       stt.Provider
	sttModel  string
	filter    *Filter
	assembler *Assembler
	prefs     *PrefsStore
	metrics   *observe.Metrics

	aggregatorOpts []audio.AggregatorOption
}

// NewPipeline creates a [Pipeline]. sttProvider, filter, assembler, and
// prefs are typically shared by every speaker pipeline in a session.
func NewPipeline(sttProvider stt.Provider, filter *Filter, assembler *Assembler, prefs *PrefsStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		stt:       sttProvider,
		filter:    filter,
		assembler: assembler,
		prefs:     prefs,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes frames until the channel closes (track unsubscribed) or ctx
// is cancelled, then flushes speaker's sentence buffer as final and clears
// its filter memory. Run is meant to be launched as one goroutine per
// subscribed track by the session orchestrator (C9).
func (p *Pipeline) Run(ctx context.Context, speaker SpeakerId, frames <-chan audio.AudioFrame) {
	if p.metrics != nil {
		p.metrics.ActiveSpeakerPipelines.Add(ctx, 1)
		defer p.metrics.ActiveSpeakerPipelines.Add(ctx, -1)
	}

	agg := audio.NewAggregator(p.aggregatorOpts...)
	defer func() {
		p.assembler.Flush(speaker, true)
		p.filter.Forget(speaker)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			window, ready, dropReason := agg.Push(frame)
			if ready {
				p.processWindow(ctx, speaker, window)
			} else if dropReason != "" && p.metrics != nil {
				p.metrics.RecordWindowDropped(ctx, dropReason)
			}
		}
	}
}

// processWindow runs one assembled window through C4 and C5, handing the
// result to the shared assembler on acceptance.
func (p *Pipeline) processWindow(ctx context.Context, speaker SpeakerId, window audio.AudioWindow) {
	ctx, span := observe.StartSpan(ctx, "caption.process_window")
	defer span.End()

	wav := audio.EncodeWAV(window.PCM, window.SampleRate, window.Channels)

	start := time.Now()
	text, err := p.stt.Transcribe(ctx, stt.Request{
		WAV:      wav,
		Language: p.prefs.STTLanguage(speaker),
		Model:    p.sttModel,
	})
	if p.metrics != nil {
		p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		p.metrics.RecordProviderRequest(ctx, "stt", "transcribe", statusOf(err))
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordProviderError(ctx, "stt", "transcribe")
		}
		observe.Logger(ctx).Warn("pipeline: stt transcribe failed", "speaker", speaker, "error", err)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ok, reason := p.filter.Accept(speaker, text, window.RMS, time.Now())
	if !ok {
		if p.metrics != nil {
			p.metrics.RecordFiltered(ctx, reason)
		}
		return
	}
	if p.metrics != nil {
		p.metrics.TranscriptsAccepted.Add(ctx, 1)
	}

	p.assembler.Append(speaker, text)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
