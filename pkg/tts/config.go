package tts

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey          string
	BaseURL         string
	CredentialsFile string // Google service account JSON

	// Voice configuration
	VoiceID       string
	ModelID       string
	VoiceSettings VoiceSettings

	// Audio output
	Format     Encoding
	SampleRate int

	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithCredentialsFile sets a Google service account JSON file.
func WithCredentialsFile(path string) Option {
	return func(c *Config) {
		c.CredentialsFile = path
	}
}

// WithVoice sets the default voice ID. Empty keeps the provider default.
func WithVoice(voiceID string) Option {
	return func(c *Config) {
		if voiceID != "" {
			c.VoiceID = voiceID
		}
	}
}

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(c *Config) {
		c.ModelID = modelID
	}
}

// WithFormat sets the default output encoding and sample rate.
func WithFormat(format Encoding, sampleRate int) Option {
	return func(c *Config) {
		c.Format = format
		c.SampleRate = sampleRate
	}
}

// WithVoiceSettings sets voice characteristics.
func WithVoiceSettings(settings VoiceSettings) Option {
	return func(c *Config) {
		c.VoiceSettings = settings
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		VoiceSettings: DefaultVoiceSettings(),
		Format:        EncodingMP3,
		SampleRate:    44100,
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		RetryDelay:    200 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// merge fills zero request fields from the config and rejects blank text.
func (c *Config) merge(req Request) (Request, error) {
	if strings.TrimSpace(req.Text) == "" {
		return req, ErrEmptyText
	}
	if req.VoiceID == "" {
		req.VoiceID = c.VoiceID
	}
	if req.Format == "" {
		req.Format = c.Format
	}
	if req.SampleRate == 0 {
		req.SampleRate = c.SampleRate
	}
	return req, nil
}
