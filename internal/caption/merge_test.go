package caption

import "testing"

func TestMergeEmptyBufferTakesSlice(t *testing.T) {
	got := mergeAppend("", "Hello world.")
	if got != "Hello world." {
		t.Errorf("got %q, want %q", got, "Hello world.")
	}
}

func TestMergeOverlapDeduplication(t *testing.T) {
	got := mergeAppend("the quick brown", "brown fox jumps")
	want := "the quick brown fox jumps"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergeLongerOverlapPreferred(t *testing.T) {
	got := mergeAppend("see you at the store tomorrow", "the store tomorrow morning")
	want := "see you at the store tomorrow morning"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergeNoOverlapConcatenates(t *testing.T) {
	got := mergeAppend("hello there", "completely different words")
	want := "hello there completely different words"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergeIdempotentOnExactRedelivery(t *testing.T) {
	buffer := mergeAppend("", "the quick brown fox")
	buffer = mergeAppend(buffer, "the quick brown fox")
	buffer = mergeAppend(buffer, "the quick brown fox")
	if buffer != "the quick brown fox" {
		t.Errorf("got %q, want unchanged buffer", buffer)
	}
}

func TestMergeRefinedRestatementReplacesBuffer(t *testing.T) {
	buffer := "the quick brown"
	got := mergeAppend(buffer, "The quick brown fox jumps over the lazy dog")
	want := "The quick brown fox jumps over the lazy dog"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergeRestatementRejectedWhenExcessivelyLonger(t *testing.T) {
	buffer := "hi"
	longSlice := "hi, and then after a very long pause the speaker continued talking about many unrelated topics for quite a while before finally getting to the point of the conversation at hand which took some time"
	got := mergeAppend(buffer, longSlice)
	// Normalized length delta exceeds 80 chars, so this must NOT replace;
	// it falls through to overlap/concat instead of verbatim replacement.
	if got == longSlice {
		t.Errorf("expected restatement branch to be rejected for excessive length delta")
	}
}

func TestMergeNeverCrossesPartialWord(t *testing.T) {
	got := mergeAppend("he said hello", "hello there friend")
	want := "he said hello there friend"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergePunctuationPreservedInAppendedPortion(t *testing.T) {
	got := mergeAppend("I went to the store", "store, and bought milk.")
	want := "I went to the store and bought milk."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
