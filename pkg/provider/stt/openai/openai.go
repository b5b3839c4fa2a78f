// Package openai implements [stt.Provider] against OpenAI's Audio
// Transcriptions endpoint, using the official openai-go SDK client the same
// way the upstream llm/openai package uses it for chat completions.
package openai

import (
	"bytes"
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/oakfield-labs/captionrelay/pkg/provider/stt"
)

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL, for self-hosted OpenAI-compatible
// gateways.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.reqOpts = append(p.reqOpts, option.WithBaseURL(url)) }
}

// Provider implements [stt.Provider] using OpenAI's transcription API.
type Provider struct {
	client  oai.Client
	model   string
	reqOpts []option.RequestOption
}

// New creates a Provider authenticated with apiKey, defaulting to model for
// requests that don't set Request.Model.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key required")
	}
	if model == "" {
		model = "whisper-1"
	}
	p := &Provider{model: model}
	for _, o := range opts {
		o(p)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, p.reqOpts...)
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := oai.AudioTranscriptionNewParams{
		File:  bytes.NewReader(req.WAV),
		Model: oai.AudioModel(model),
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}
	return resp.Text, nil
}
