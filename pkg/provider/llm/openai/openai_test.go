package openai

import (
	"testing"

	"github.com/oakfield-labs/captionrelay/pkg/provider/llm"
)

func TestBuildParams_SystemAndUser(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Translate to French.",
		Text:         "Hello there",
		Temperature:  0.1,
		MaxTokens:    64,
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected first message to be system role")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected second message to be user role")
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 64 {
		t.Errorf("expected max tokens 64, got %v", params.MaxCompletionTokens)
	}
}

func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{Text: "just translate this"})
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message (user only), got %d", len(params.Messages))
	}
	if params.Messages[0].OfUser == nil {
		t.Error("expected sole message to be user role")
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_MissingModel(t *testing.T) {
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o-mini",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}
