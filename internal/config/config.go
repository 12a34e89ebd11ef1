package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the speech gateway service.
// The timing and energy constants are empirically tuned; they are exposed
// as environment tunables rather than hardcoded because microphone gain
// and room acoustics vary per installation.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Audio capture configuration. The capture device reports its native
	// sample rate at stream-open time; TargetSampleRate is what utterances
	// are resampled to before transcription.
	TargetSampleRate int `envconfig:"TARGET_SAMPLE_RATE" default:"16000"`
	FrameSize        int `envconfig:"FRAME_SIZE" default:"512"` // samples per VAD frame

	// Voice activity segmentation
	SpeechThreshold float64 `envconfig:"SPEECH_THRESHOLD" default:"0.01"` // RMS floor for a speech frame
	SilenceGraceMs  int     `envconfig:"SILENCE_GRACE_MS" default:"700"`  // trailing silence kept in an utterance
	PreRollMs       int     `envconfig:"PRE_ROLL_MS" default:"400"`       // pre-onset audio retained

	// Utterance flush policies
	MaxUtteranceMs    int     `envconfig:"MAX_UTTERANCE_MS" default:"4000"`     // hard flush during continuous speech
	MinUtteranceS     float64 `envconfig:"MIN_UTTERANCE_S" default:"0.6"`       // discard shorter utterances
	UtteranceRMSFloor float64 `envconfig:"UTTERANCE_RMS_FLOOR" default:"0.005"` // discard ambient-noise utterances

	// Volume metering
	VolumeNoiseFloor float64 `envconfig:"VOLUME_NOISE_FLOOR" default:"0.004"`
	VolumeReference  float64 `envconfig:"VOLUME_REFERENCE" default:"0.2"` // RMS mapped to full scale
	VolumeSmoothing  float64 `envconfig:"VOLUME_SMOOTHING" default:"0.3"`

	// Transcription engine (whisper.cpp)
	WhisperModelPath string `envconfig:"WHISPER_MODEL_PATH" default:""`
	WhisperModelURL  string `envconfig:"WHISPER_MODEL_URL" default:"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin"`
	MinTranscriptLen int    `envconfig:"MIN_TRANSCRIPT_LEN" default:"4"`

	// Reference detection service
	DetectionURL       string  `envconfig:"DETECTION_URL" required:"true"`
	DetectionTimeoutMs int     `envconfig:"DETECTION_TIMEOUT_MS" default:"10000"`
	ConfidenceFloor    float64 `envconfig:"CONFIDENCE_FLOOR" default:"0.5"`

	// Transcript aggregation
	ContextMaxChars  int `envconfig:"CONTEXT_MAX_CHARS" default:"400"`
	ContextTailChars int `envconfig:"CONTEXT_TAIL_CHARS" default:"120"`
	MinContextChars  int `envconfig:"MIN_CONTEXT_CHARS" default:"12"`
	DebounceMs       int `envconfig:"DEBOUNCE_MS" default:"800"`
	DedupCooldownMs  int `envconfig:"DEDUP_COOLDOWN_MS" default:"8000"`

	// Verse store
	VerseStorePath string `envconfig:"VERSE_STORE_PATH" default:""`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load a .env file.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DetectionURL == "" {
		return nil, fmt.Errorf("DETECTION_URL is required")
	}

	if cfg.WhisperModelPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir for model path: %w", err)
		}
		cfg.WhisperModelPath = filepath.Join(home, ".versecue", "models", "ggml-base.en.bin")
	}
	if cfg.VerseStorePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir for verse store path: %w", err)
		}
		cfg.VerseStorePath = filepath.Join(home, ".versecue", "verses")
	}

	return &cfg, nil
}

// SilenceGrace returns the silence grace period as a duration.
func (c *Config) SilenceGrace() time.Duration {
	return time.Duration(c.SilenceGraceMs) * time.Millisecond
}

// PreRoll returns the pre-roll window as a duration.
func (c *Config) PreRoll() time.Duration {
	return time.Duration(c.PreRollMs) * time.Millisecond
}

// MaxUtterance returns the hard flush interval as a duration.
func (c *Config) MaxUtterance() time.Duration {
	return time.Duration(c.MaxUtteranceMs) * time.Millisecond
}

// Debounce returns the detection debounce delay as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// DedupCooldown returns the reference dedup window as a duration.
func (c *Config) DedupCooldown() time.Duration {
	return time.Duration(c.DedupCooldownMs) * time.Millisecond
}

// DetectionTimeout returns the per-call detection timeout as a duration.
func (c *Config) DetectionTimeout() time.Duration {
	return time.Duration(c.DetectionTimeoutMs) * time.Millisecond
}
