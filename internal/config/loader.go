package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "localwhisper"},
	"llm": {"openai", "anyllm"},
}

// Load builds a [Config] from its three layers, in increasing priority:
// built-in defaults, an optional YAML file named by the
// CAPTIONRELAY_CONFIG_FILE environment variable, then the environment
// variables listed in the external-interface table. The result is validated
// before being returned.
func Load() (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{ListenAddr: ":8080", LogLevel: LogLevelInfo},
		Pipeline: DefaultPipelineConfig(),
		Agent: AgentConfig{
			OpenAISTTModel: "gpt-4o-transcribe",
		},
	}

	if path := os.Getenv("CAPTIONRELAY_CONFIG_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the built-in
// defaults and validates the result, without consulting the environment.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{ListenAddr: ":8080", LogLevel: LogLevelInfo},
		Pipeline: DefaultPipelineConfig(),
		Agent: AgentConfig{
			OpenAISTTModel: "gpt-4o-transcribe",
		},
	}
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// applyEnv overlays the environment variables from the external-interface
// table onto cfg, in place. A variable that is unset or empty leaves the
// existing value (default or YAML-supplied) untouched.
func applyEnv(cfg *Config) {
	envString(&cfg.Server.ListenAddr, "LISTEN_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}

	envString(&cfg.Room.SignalingURL, "ROOM_SIGNALING_URL")
	envString(&cfg.Room.STUNServers, "ROOM_STUN_SERVERS")

	envString(&cfg.Providers.STT.Name, "STT_PROVIDER")
	envString(&cfg.Providers.STT.APIKey, "OPENAI_API_KEY")
	envString(&cfg.Providers.STT.BaseURL, "STT_BASE_URL")
	envString(&cfg.Providers.STTFallback.Name, "STT_FALLBACK_PROVIDER")
	envString(&cfg.Providers.STTFallback.BaseURL, "STT_FALLBACK_BASE_URL")

	envString(&cfg.Providers.LLM.Name, "LLM_PROVIDER")
	envString(&cfg.Providers.LLM.APIKey, "LLM_API_KEY")
	envString(&cfg.Providers.LLM.Model, "LLM_MODEL")
	envString(&cfg.Providers.LLMFallback.Name, "LLM_FALLBACK_PROVIDER")
	envString(&cfg.Providers.LLMFallback.APIKey, "LLM_FALLBACK_API_KEY")
	envString(&cfg.Providers.LLMFallback.Model, "LLM_FALLBACK_MODEL")

	envInt(&cfg.Pipeline.BufferTargetMS, "BUFFER_TARGET_MS")
	envInt(&cfg.Pipeline.OverlapMS, "OVERLAP_MS")
	envFloat(&cfg.Pipeline.VADThreshold, "VAD_THRESHOLD")
	envFloat(&cfg.Pipeline.ShortHighRMS, "SHORT_HIGH_RMS")
	envInt(&cfg.Pipeline.RepeatWindowMS, "REPEAT_WINDOW_MS")
	envString(&cfg.Pipeline.BlocklistPhrases, "BLOCKLIST_PHRASES")
	envString(&cfg.Pipeline.WeakEndWords, "WEAK_END_WORDS")
	envInt(&cfg.Pipeline.PunctGraceMS, "PUNCT_GRACE_MS")
	envInt(&cfg.Pipeline.PauseFinalMS, "PAUSE_FINAL_MS")
	envInt(&cfg.Pipeline.MinCharsForFinal, "MIN_CHARS_FOR_FINAL")

	envString(&cfg.Agent.OpenAISTTModel, "OPENAI_STT_MODEL")
	envString(&cfg.Agent.STTLanguage, "STT_LANGUAGE")
	if v := os.Getenv("AGENT_SEND_CHAT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Agent.AgentSendChat = b
		} else {
			slog.Warn("AGENT_SEND_CHAT is not a valid boolean, ignoring", "value", v)
		}
	}
}

func envString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("environment variable is not a valid integer, ignoring", "name", name, "value", v)
		return
	}
	*dst = n
}

func envFloat(dst *float64, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("environment variable is not a valid number, ignoring", "name", name, "value", v)
		return
	}
	*dst = f
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Room.SignalingURL == "" {
		errs = append(errs, errors.New("room.signaling_url (ROOM_SIGNALING_URL) is required"))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name (STT_PROVIDER) is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name (LLM_PROVIDER) is required"))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)

	if cfg.Pipeline.BufferTargetMS <= 0 {
		errs = append(errs, errors.New("pipeline.buffer_target_ms (BUFFER_TARGET_MS) must be positive"))
	}
	if cfg.Pipeline.OverlapMS < 0 {
		errs = append(errs, errors.New("pipeline.overlap_ms (OVERLAP_MS) must not be negative"))
	}
	if cfg.Pipeline.OverlapMS >= cfg.Pipeline.BufferTargetMS {
		errs = append(errs, errors.New("pipeline.overlap_ms (OVERLAP_MS) must be smaller than buffer_target_ms (BUFFER_TARGET_MS)"))
	}
	if cfg.Pipeline.VADThreshold < 0 {
		errs = append(errs, errors.New("pipeline.vad_threshold (VAD_THRESHOLD) must not be negative"))
	}
	if cfg.Pipeline.RepeatWindowMS < 0 {
		errs = append(errs, errors.New("pipeline.repeat_window_ms (REPEAT_WINDOW_MS) must not be negative"))
	}
	if cfg.Pipeline.PunctGraceMS < 0 {
		errs = append(errs, errors.New("pipeline.punct_grace_ms (PUNCT_GRACE_MS) must not be negative"))
	}
	if cfg.Pipeline.PauseFinalMS <= 0 {
		errs = append(errs, errors.New("pipeline.pause_final_ms (PAUSE_FINAL_MS) must be positive"))
	}
	if cfg.Pipeline.MinCharsForFinal < 0 {
		errs = append(errs, errors.New("pipeline.min_chars_for_final (MIN_CHARS_FOR_FINAL) must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	for _, k := range known {
		if k == name {
			return
		}
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// BlocklistPhrasesList splits cfg's comma-separated blocklist into trimmed,
// lowercased entries, skipping empties.
func (c PipelineConfig) BlocklistPhrasesList() []string {
	return splitCSV(c.BlocklistPhrases)
}

// WeakEndWordsList splits cfg's comma-separated weak-end-word list into
// trimmed, lowercased entries, skipping empties.
func (c PipelineConfig) WeakEndWordsList() []string {
	return splitCSV(c.WeakEndWords)
}

// STUNServersList splits cfg's comma-separated STUN server list into
// trimmed entries, skipping empties.
func (c RoomConfig) STUNServersList() []string {
	if c.STUNServers == "" {
		return nil
	}
	parts := strings.Split(c.STUNServers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
