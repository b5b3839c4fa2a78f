package caption

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Default timing/threshold parameters, matching the external-interface
// defaults.
const (
	DefaultPunctGraceMS     = 900
	DefaultPauseFinalMS     = 2500
	DefaultMinCharsForFinal = 24
)

var defaultWeakEndWords = []string{
	"doing", "going", "is", "are", "was", "were", "about", "with", "to", "for", "like",
}

// strongEndRunes are the sentence-terminating runes that make a buffer a
// finalization candidate, per component 6's strong-ending check.
var strongEndRunes = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, '…': {}, ')': {}, ']': {}, '"': {},
	'。': {}, '！': {}, '？': {},
}

// Publisher is the sink an Assembler publishes transcription records to
// (the outbound publisher, C8).
type Publisher interface {
	Publish(ctx context.Context, rec CaptionRecord)
}

// Translator is invoked by the assembler whenever a sentence finalizes (the
// translation dispatcher, C7).
type Translator interface {
	Translate(ctx context.Context, speaker SpeakerId, sentenceID int, text string)
}

// AssemblerOption configures an [Assembler] at construction.
type AssemblerOption func(*Assembler)

// WithWeakEndWords overrides the default set of trailing words that suppress
// punctuation-triggered finalization (e.g. "to", "with").
func WithWeakEndWords(words []string) AssemblerOption {
	return func(a *Assembler) {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				set[w] = struct{}{}
			}
		}
		a.weakEndWords = set
	}
}

// WithPunctGrace sets how long the assembler waits after a strong-ending
// buffer before declaring it final, giving a trailing continuation a chance
// to extend the sentence. Default 900ms.
func WithPunctGrace(d time.Duration) AssemblerOption {
	return func(a *Assembler) { a.punctGrace = d }
}

// WithPauseFinal sets how long a speaker's buffer may sit untouched before
// the assembler emits an interim flush (or finalizes, if grace was already
// pending). Default 2500ms.
func WithPauseFinal(d time.Duration) AssemblerOption {
	return func(a *Assembler) { a.pauseFinal = d }
}

// WithMinCharsForFinal sets the minimum buffer length required for the
// strong-ending check to schedule a grace-finalize. Default 24.
func WithMinCharsForFinal(n int) AssemblerOption {
	return func(a *Assembler) { a.minCharsForFinal = n }
}

// Assembler is the sentence-assembler state machine (C6): the per-speaker
// buffer, merge, and pause/grace-timer logic that turns a stream of filtered
// STT slices into transcription records with stable sentence ids.
//
// Each speaker owns an independent task goroutine; pause and grace timer
// firings are delivered to that task as events on the same channel new
// slices arrive on, so "a new slice arrived" and "a timer fired" are
// strictly ordered against each other and the "pause wins over grace" rule
// falls out of that ordering rather than a callback race.
type Assembler struct {
	publisher  Publisher
	translator Translator
	logger     *slog.Logger

	weakEndWords     map[string]struct{}
	punctGrace       time.Duration
	pauseFinal       time.Duration
	minCharsForFinal int

	mu    sync.Mutex
	tasks map[SpeakerId]*speakerTask
}

// NewAssembler creates an [Assembler] publishing through publisher and
// dispatching translations through translator, either of which may be nil
// for testing the state machine in isolation.
func NewAssembler(publisher Publisher, translator Translator, opts ...AssemblerOption) *Assembler {
	weak := make(map[string]struct{}, len(defaultWeakEndWords))
	for _, w := range defaultWeakEndWords {
		weak[w] = struct{}{}
	}
	a := &Assembler{
		publisher:        publisher,
		translator:       translator,
		logger:           slog.Default(),
		weakEndWords:     weak,
		punctGrace:       DefaultPunctGraceMS * time.Millisecond,
		pauseFinal:       DefaultPauseFinalMS * time.Millisecond,
		minCharsForFinal: DefaultMinCharsForFinal,
		tasks:            make(map[SpeakerId]*speakerTask),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append merges a newly recognized, filter-accepted slice into speaker's
// sentence buffer. It creates speaker's task on first use.
func (a *Assembler) Append(speaker SpeakerId, slice string) {
	a.task(speaker).send(appendEvent{slice: slice})
}

// Flush finalizes (final=true) or interim-emits (final=false) speaker's
// current buffer and blocks until the task has processed it. A no-op if
// speaker has no task or an empty buffer.
func (a *Assembler) Flush(speaker SpeakerId, final bool) {
	a.mu.Lock()
	t, ok := a.tasks[speaker]
	a.mu.Unlock()
	if !ok {
		return
	}
	done := make(chan struct{})
	t.send(flushEvent{final: final, done: done})
	<-done
}

// Close flushes speaker's buffer as final, stops its task, and drops its
// state. Safe to call on a speaker with no task.
func (a *Assembler) Close(speaker SpeakerId) {
	a.mu.Lock()
	t, ok := a.tasks[speaker]
	delete(a.tasks, speaker)
	a.mu.Unlock()
	if !ok {
		return
	}
	done := make(chan struct{})
	t.send(flushEvent{final: true, done: done})
	<-done
	close(t.events)
}

// ActiveSpeakers reports the speakers with a live task, for diagnostics.
func (a *Assembler) ActiveSpeakers() []SpeakerId {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SpeakerId, 0, len(a.tasks))
	for s := range a.tasks {
		out = append(out, s)
	}
	return out
}

func (a *Assembler) task(speaker SpeakerId) *speakerTask {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tasks[speaker]
	if !ok {
		t = newSpeakerTask(speaker, a)
		a.tasks[speaker] = t
		go t.run()
	}
	return t
}

type appendEvent struct{ slice string }

type flushEvent struct {
	final bool
	done  chan struct{}
}

type timerKind int

const (
	timerPause timerKind = iota
	timerFinalize
)

// timerEvent carries a generation number so a timer stopped-but-already-
// fired (the race inherent in time.Timer.Stop) is recognized as stale and
// ignored rather than acted on.
type timerEvent struct {
	kind timerKind
	gen  uint64
}

// speakerTask owns one speaker's SentenceState and is the single writer for
// all of its fields below; every mutation happens inside run, driven by
// events arriving on events.
type speakerTask struct {
	speaker SpeakerId
	asm     *Assembler
	events  chan interface{}

	buffer         string
	sentenceID     int
	nextSentenceID int

	pauseGen      uint64
	pauseTimer    *time.Timer
	finalizeGen   uint64
	finalizeTimer *time.Timer
	finalizePending bool
}

func newSpeakerTask(speaker SpeakerId, a *Assembler) *speakerTask {
	return &speakerTask{speaker: speaker, asm: a, events: make(chan interface{}, 16)}
}

func (t *speakerTask) send(ev interface{}) {
	t.events <- ev
}

func (t *speakerTask) run() {
	for ev := range t.events {
		switch e := ev.(type) {
		case appendEvent:
			t.handleAppend(e.slice)
		case flushEvent:
			t.doFlush(e.final)
			close(e.done)
		case timerEvent:
			t.handleTimer(e)
		}
	}
	t.cancelPause()
	t.cancelFinalize()
}

// handleAppend implements the Append operation: merge, trim, cancel the
// pending pause timer (and any pending grace timer, since the buffer it was
// scheduled against no longer exists unchanged), then re-run the
// strong-ending check against the merged buffer and reschedule the pause
// timer.
func (t *speakerTask) handleAppend(slice string) {
	t.buffer = strings.TrimSpace(mergeAppend(t.buffer, slice))

	t.cancelPause()
	t.cancelFinalize()

	t.maybeScheduleFinalize()
	t.schedulePause()
}

func (t *speakerTask) handleTimer(e timerEvent) {
	switch e.kind {
	case timerPause:
		if e.gen != t.pauseGen {
			return
		}
		t.pauseTimer = nil
		if t.finalizePending {
			// Pause wins over grace.
			t.cancelFinalize()
			t.doFlush(true)
			return
		}
		t.doFlush(false)
	case timerFinalize:
		if e.gen != t.finalizeGen {
			return
		}
		t.finalizeTimer = nil
		t.finalizePending = false
		t.doFlush(true)
	}
}

// doFlush implements the Flush operation for both internal timer firings
// and external callers (unsubscribe, shutdown).
func (t *speakerTask) doFlush(final bool) {
	if t.buffer == "" {
		return
	}
	t.cancelPause()

	if t.sentenceID == 0 {
		t.nextSentenceID++
		t.sentenceID = t.nextSentenceID
	}

	rec := CaptionRecord{
		Type:       RecordTypeTranscription,
		Speaker:    t.speaker,
		SentenceID: t.sentenceID,
		Final:      final,
		Text:       t.buffer,
		Timestamp:  time.Now(),
	}
	t.asm.logger.Debug("assembler: publish transcription",
		"speaker", t.speaker, "sentenceId", t.sentenceID, "final", final)
	if t.asm.publisher != nil {
		t.asm.publisher.Publish(context.Background(), rec)
	}

	if !final {
		return
	}

	t.cancelFinalize()
	text, sentenceID := t.buffer, t.sentenceID
	if t.asm.translator != nil {
		t.asm.translator.Translate(context.Background(), t.speaker, sentenceID, text)
	}
	t.buffer = ""
	t.sentenceID = 0
}

// maybeScheduleFinalize implements the strong-ending check: schedules a
// grace-period finalize timer when buffer ends with strong punctuation,
// its last word isn't a configured weak ender, and it's long enough to
// qualify.
func (t *speakerTask) maybeScheduleFinalize() {
	if t.finalizePending {
		return
	}
	if !hasStrongEnding(t.buffer) {
		return
	}
	if len(t.buffer) < t.asm.minCharsForFinal {
		return
	}
	if _, weak := t.asm.weakEndWords[lastAlnumWord(t.buffer)]; weak {
		return
	}

	t.finalizeGen++
	gen := t.finalizeGen
	t.finalizePending = true
	t.finalizeTimer = time.AfterFunc(t.asm.punctGrace, func() {
		t.send(timerEvent{kind: timerFinalize, gen: gen})
	})
}

func (t *speakerTask) schedulePause() {
	t.pauseGen++
	gen := t.pauseGen
	t.pauseTimer = time.AfterFunc(t.asm.pauseFinal, func() {
		t.send(timerEvent{kind: timerPause, gen: gen})
	})
}

func (t *speakerTask) cancelPause() {
	if t.pauseTimer != nil {
		t.pauseTimer.Stop()
		t.pauseTimer = nil
	}
	t.pauseGen++
}

func (t *speakerTask) cancelFinalize() {
	if t.finalizeTimer != nil {
		t.finalizeTimer.Stop()
		t.finalizeTimer = nil
	}
	t.finalizeGen++
	t.finalizePending = false
}

// hasStrongEnding reports whether s, after trimming trailing whitespace,
// ends with one of the configured strong sentence-terminating runes.
func hasStrongEnding(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return false
	}
	r := []rune(s)
	_, ok := strongEndRunes[r[len(r)-1]]
	return ok
}

// lastAlnumWord returns the normalized form of the last non-empty word
// token in s, skipping trailing tokens that normalize to nothing (pure
// punctuation).
func lastAlnumWord(s string) string {
	words := strings.Fields(s)
	for i := len(words) - 1; i >= 0; i-- {
		if w := normalizeWord(words[i]); w != "" {
			return w
		}
	}
	return ""
}
