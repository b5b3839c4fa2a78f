package caption

import (
	"testing"
	"time"
)

func TestFilterRejectsBlocklist(t *testing.T) {
	f := NewFilter(WithBlocklist([]string{"thank you", "bye"}))
	ok, reason := f.Accept("p1", "Thank You", 2000, time.Now())
	if ok {
		t.Fatal("expected blocklisted phrase to be rejected")
	}
	if reason != "blocklist" {
		t.Errorf("reason = %q, want blocklist", reason)
	}
}

func TestFilterRejectsPunctuationOnly(t *testing.T) {
	f := NewFilter()
	ok, reason := f.Accept("p1", ".", 2000, time.Now())
	if ok {
		t.Fatal("expected punctuation-only transcript to be rejected")
	}
	if reason != "no_alnum" {
		t.Errorf("reason = %q, want no_alnum", reason)
	}
}

func TestFilterRejectsShortLowEnergyRepeat(t *testing.T) {
	f := NewFilter(WithShortHighRMS(1200), WithRepeatWindow(7*time.Second))
	now := time.Now()

	ok, _ := f.Accept("p1", "uh", 500, now)
	if !ok {
		t.Fatal("first occurrence should be accepted")
	}

	ok, reason := f.Accept("p1", "uh", 500, now.Add(1*time.Second))
	if ok {
		t.Fatal("second low-energy short repeat within window should be rejected")
	}
	if reason != "repeat" {
		t.Errorf("reason = %q, want repeat", reason)
	}
}

func TestFilterAcceptsShortHighEnergyRepeat(t *testing.T) {
	f := NewFilter(WithShortHighRMS(1200))
	now := time.Now()

	f.Accept("p1", "uh", 2000, now)
	ok, _ := f.Accept("p1", "uh", 2000, now.Add(1*time.Second))
	if !ok {
		t.Fatal("high-energy repeat should bypass the short-repeat rule")
	}
}

func TestFilterAcceptsRepeatAfterWindowExpires(t *testing.T) {
	f := NewFilter(WithShortHighRMS(1200), WithRepeatWindow(7*time.Second))
	now := time.Now()

	f.Accept("p1", "uh", 500, now)
	ok, _ := f.Accept("p1", "uh", 500, now.Add(8*time.Second))
	if !ok {
		t.Fatal("repeat outside the recency window should be accepted")
	}
}

func TestFilterRepeatMemoryIsPerSpeaker(t *testing.T) {
	f := NewFilter(WithShortHighRMS(1200))
	now := time.Now()

	f.Accept("p1", "uh", 500, now)
	ok, _ := f.Accept("p2", "uh", 500, now.Add(time.Second))
	if !ok {
		t.Fatal("repeat memory must not leak across speakers")
	}
}

func TestFilterForgetClearsMemory(t *testing.T) {
	f := NewFilter(WithShortHighRMS(1200), WithRepeatWindow(7*time.Second))
	now := time.Now()

	f.Accept("p1", "uh", 500, now)
	f.Forget("p1")
	ok, _ := f.Accept("p1", "uh", 500, now.Add(time.Second))
	if !ok {
		t.Fatal("forgotten speaker should not trigger the repeat rule")
	}
}

func TestFilterAcceptsOrdinaryTranscript(t *testing.T) {
	f := NewFilter()
	ok, reason := f.Accept("p1", "Hello there, how are you?", 2000, time.Now())
	if !ok {
		t.Fatalf("expected acceptance, got rejection reason %q", reason)
	}
}
