// Package config provides the configuration schema and loader for
// captionrelay.
//
// Configuration layers in increasing priority: built-in defaults, an
// optional YAML file named by CAPTIONRELAY_CONFIG_FILE, then environment
// variables. Environment variables always win — they are the primary
// deployment mechanism; the YAML file exists for local development and for
// operators who prefer a checked-in file over a pile of env vars.
package config

// LogLevel is a validated logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level, or empty (meaning
// "use the default").
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	default:
		return false
	}
}

// Config is the root configuration structure for captionrelay.
// It is typically loaded from the environment using [Load].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Room      RoomConfig      `yaml:"room"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Agent     AgentConfig     `yaml:"agent"`
}

// ServerConfig holds network and logging settings for the control surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the control HTTP server listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// RoomConfig configures how the agent joins a conferencing room over
// WebRTC.
type RoomConfig struct {
	// SignalingURL is the websocket URL of the signaling service the agent
	// dials to negotiate its peer connection (e.g.
	// "wss://conf.example.com/signal").
	SignalingURL string `yaml:"signaling_url"`

	// STUNServers is a comma-separated list of STUN server URLs used
	// during ICE negotiation. Empty uses the platform's built-in default.
	STUNServers string `yaml:"stun_servers"`
}

// ProviderEntry is the common configuration block for an STT or LLM backend.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "anyllm",
	// "localwhisper"). Empty means this leg is not configured.
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Leave empty
	// to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// ProvidersConfig selects the primary and fallback backend for speech
// recognition and translation. A fallback with an empty Name is not
// registered; the fallback group then has only a primary.
type ProvidersConfig struct {
	STT         ProviderEntry `yaml:"stt"`
	STTFallback ProviderEntry `yaml:"stt_fallback"`
	LLM         ProviderEntry `yaml:"llm"`
	LLMFallback ProviderEntry `yaml:"llm_fallback"`
}

// PipelineConfig holds the frame-aggregation, filtering, and sentence
// assembly tuning knobs shared by every speaker pipeline in every room.
type PipelineConfig struct {
	// BufferTargetMS is the target duration, in milliseconds, of audio
	// accumulated before a window is handed to STT.
	BufferTargetMS int `yaml:"buffer_target_ms"`

	// OverlapMS is the tail duration retained from one window and
	// prepended to the next, so STT sees continuous audio across window
	// boundaries.
	OverlapMS int `yaml:"overlap_ms"`

	// VADThreshold is the minimum RMS level a window must reach to be
	// treated as speech rather than silence/noise.
	VADThreshold float64 `yaml:"vad_threshold"`

	// ShortHighRMS is the RMS level at or above which a short (one- or
	// two-word) transcript is exempt from repeat suppression; below it, a
	// short transcript that repeats the speaker's last accepted text
	// within RepeatWindowMS is dropped.
	ShortHighRMS float64 `yaml:"short_high_rms"`

	// RepeatWindowMS is how long a speaker's most recent transcript is
	// remembered for duplicate suppression.
	RepeatWindowMS int `yaml:"repeat_window_ms"`

	// BlocklistPhrases is a comma-separated list of phrases that, when a
	// transcript consists of nothing else, cause the window to be
	// dropped (hallucinated filler such as "thank you", "bye").
	BlocklistPhrases string `yaml:"blocklist_phrases"`

	// WeakEndWords is a comma-separated list of words that, when a
	// sentence candidate ends with one of them, defer finalization even
	// after terminal punctuation appears ("and", "but", "so", ...).
	WeakEndWords string `yaml:"weak_end_words"`

	// PunctGraceMS is how long the sentence assembler waits after
	// terminal punctuation before finalizing, to allow a trailing
	// correction to arrive.
	PunctGraceMS int `yaml:"punct_grace_ms"`

	// PauseFinalMS is how long the sentence assembler waits with no newly
	// accepted transcript before emitting an interim flush of the buffer;
	// if a punctuation-grace finalize is pending, it finalizes instead.
	PauseFinalMS int `yaml:"pause_final_ms"`

	// MinCharsForFinal is the minimum buffer length (in bytes) for a
	// strong-punctuation ending to schedule the grace finalize; shorter
	// buffers are not finalized by punctuation.
	MinCharsForFinal int `yaml:"min_chars_for_final"`
}

// DefaultPipelineConfig returns the pipeline defaults used when no override
// is present in the YAML file or environment.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BufferTargetMS:   1800,
		OverlapMS:        300,
		VADThreshold:     800,
		ShortHighRMS:     1200,
		RepeatWindowMS:   7000,
		BlocklistPhrases: "",
		WeakEndWords:     "doing,going,is,are,was,were,about,with,to,for,like",
		PunctGraceMS:     900,
		PauseFinalMS:     2500,
		MinCharsForFinal: 24,
	}
}

// AgentConfig holds settings outside pipeline tuning: STT model/language
// selection and the optional chat mirror of published caption records.
type AgentConfig struct {
	// OpenAISTTModel is the model id passed to the OpenAI transcription
	// backend.
	OpenAISTTModel string `yaml:"openai_stt_model"`

	// STTLanguage is an optional BCP-47 hint passed to the STT backend.
	// Empty lets the backend auto-detect.
	STTLanguage string `yaml:"stt_language"`

	// AgentSendChat mirrors every published transcription and translation
	// record, interim and final, onto the room's text chat topic in
	// addition to the structured captions data-channel topic.
	AgentSendChat bool `yaml:"agent_send_chat"`
}
