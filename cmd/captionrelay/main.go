// Command captionrelay is the entry point for the real-time captioning
// agent: it joins a conferencing room, transcribes and translates each
// speaker's audio, and publishes caption records back into the room.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/oakfield-labs/captionrelay/internal/app"
	"github.com/oakfield-labs/captionrelay/internal/config"
	"github.com/oakfield-labs/captionrelay/internal/health"
	"github.com/oakfield-labs/captionrelay/internal/observe"
	"github.com/oakfield-labs/captionrelay/internal/resilience"
	"github.com/oakfield-labs/captionrelay/pkg/provider/llm"
	llmanyllm "github.com/oakfield-labs/captionrelay/pkg/provider/llm/anyllm"
	llmopenai "github.com/oakfield-labs/captionrelay/pkg/provider/llm/openai"
	"github.com/oakfield-labs/captionrelay/pkg/provider/stt"
	sttlocalwhisper "github.com/oakfield-labs/captionrelay/pkg/provider/stt/localwhisper"
	sttopenai "github.com/oakfield-labs/captionrelay/pkg/provider/stt/openai"
	"github.com/oakfield-labs/captionrelay/pkg/room/pion"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "captionrelay: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("captionrelay starting",
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"stt_provider", cfg.Providers.STT.Name,
		"llm_provider", cfg.Providers.LLM.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "captionrelay"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttProvider, err := buildSTT(reg, cfg)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}

	llmProvider, err := buildLLM(reg, cfg)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	platform := pion.New(cfg.Room.SignalingURL,
		pion.WithSTUNServers(cfg.Room.STUNServersList()...),
		pion.WithIdentityMetadata(map[string]string{"role": "agent", "subtype": "captions"}),
	)

	sm := app.NewSessionManager(app.SessionManagerConfig{
		Platform: platform,
		STT:      sttProvider,
		LLM:      llmProvider,
		Pipeline: cfg.Pipeline,
		Agent:    cfg.Agent,
		Metrics:  metrics,
	})

	healthHandler := health.New(
		health.Checker{Name: "stt", Check: sttHealthCheck(sttProvider)},
		health.Checker{Name: "llm", Check: llmHealthCheck(llmProvider)},
	)

	application := app.New(cfg, sm, metrics, healthHandler)

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires the STT/LLM provider names captionrelay
// ships with into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterSTT("localwhisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		return sttlocalwhisper.New(entry.BaseURL), nil
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterLLM("anyllm", func(entry config.ProviderEntry) (llm.Provider, error) {
		return llmanyllm.New(entry.Name, entry.Model)
	})
}

// buildSTT constructs the primary STT provider from cfg.Providers.STT and
// always wraps it in a circuit-breaker-protected fallback group; a second
// leg is added when cfg.Providers.STTFallback names a backend.
func buildSTT(reg *config.Registry, cfg *config.Config) (stt.Provider, error) {
	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}

	fb := resilience.NewSTTFallback(primary, cfg.Providers.STT.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{Name: "stt/" + cfg.Providers.STT.Name},
	})

	if cfg.Providers.STTFallback.Name != "" {
		secondary, err := reg.CreateSTT(cfg.Providers.STTFallback)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback provider %q: %w", cfg.Providers.STTFallback.Name, err)
		}
		fb.AddFallback(cfg.Providers.STTFallback.Name, secondary)
	}

	return fb, nil
}

// buildLLM constructs the primary LLM provider from cfg.Providers.LLM and
// always wraps it in a circuit-breaker-protected fallback group; a second
// leg is added when cfg.Providers.LLMFallback names a backend.
func buildLLM(reg *config.Registry, cfg *config.Config) (llm.Provider, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}

	fb := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{Name: "llm/" + cfg.Providers.LLM.Name},
	})

	if cfg.Providers.LLMFallback.Name != "" {
		secondary, err := reg.CreateLLM(cfg.Providers.LLMFallback)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback provider %q: %w", cfg.Providers.LLMFallback.Name, err)
		}
		fb.AddFallback(cfg.Providers.LLMFallback.Name, secondary)
	}

	return fb, nil
}

// sttHealthCheck probes the STT backend with an empty request, since the
// transcription endpoints have no dedicated ping/healthz API; a request
// that fails to even reach the API surfaces as an error here regardless of
// what it does with empty audio.
func sttHealthCheck(p stt.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Transcribe(ctx, stt.Request{})
		return err
	}
}

// llmHealthCheck probes the LLM backend with a minimal completion request.
func llmHealthCheck(p llm.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Complete(ctx, llm.CompletionRequest{Text: "ping", MaxTokens: 1})
		return err
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
