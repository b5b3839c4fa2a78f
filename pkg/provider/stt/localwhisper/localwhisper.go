// Package localwhisper implements [stt.Provider] against a self-hosted
// whisper.cpp-server instance's bespoke POST /inference multipart endpoint.
//
// It exists as a fallback leg behind a circuit breaker alongside the OpenAI
// provider: whisper.cpp exposes no published Go client, so this is a plain
// net/http multipart REST call, adapted from the upstream whisper-backed STT
// provider's infer() method rather than its (unused, streaming-oriented)
// session machinery.
package localwhisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/oakfield-labs/captionrelay/pkg/provider/stt"
)

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the default http.Client, e.g. to set a custom
// timeout or transport.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithModel sets the default model field sent with every request, when
// Request.Model is empty.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// Provider implements [stt.Provider] by POSTing pre-encoded WAV audio to a
// whisper.cpp-server's /inference endpoint.
type Provider struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Provider that submits inference requests to serverURL (e.g.
// "http://localhost:8081").
func New(serverURL string, opts ...Option) *Provider {
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Transcribe implements [stt.Provider]. req.WAV is posted as-is; no encoding
// happens here since the caller (the STT client adapter) already produced a
// WAV container via audio.EncodeWAV.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("localwhisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.WAV); err != nil {
		return "", fmt.Errorf("localwhisper: write wav data: %w", err)
	}

	if req.Language != "" {
		if err := mw.WriteField("language", req.Language); err != nil {
			return "", fmt.Errorf("localwhisper: write language field: %w", err)
		}
	}
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model != "" {
		if err := mw.WriteField("model", model); err != nil {
			return "", fmt.Errorf("localwhisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("localwhisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("localwhisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("localwhisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("localwhisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("localwhisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("localwhisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
