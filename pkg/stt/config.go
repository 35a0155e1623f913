package stt

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds STT provider configuration.
type Config struct {
	APIKey          string
	BaseURL         string
	CredentialsFile string // Google service account JSON

	Model             string
	Language          string
	LanguageDetection bool

	Timeout      time.Duration
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option is a functional option for configuring STT providers.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithCredentialsFile sets a Google service account JSON file.
func WithCredentialsFile(path string) Option {
	return func(c *Config) { c.CredentialsFile = path }
}

// WithModel sets the default model or tier.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the default language code.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithLanguageDetection enables automatic language detection by default.
func WithLanguageDetection(on bool) Option {
	return func(c *Config) { c.LanguageDetection = on }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithPollInterval sets how often asynchronous jobs are polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
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
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Language:          "en",
		LanguageDetection: true,
		Timeout:           60 * time.Second,
		PollInterval:      time.Second,
		MaxRetries:        2,
		RetryDelay:        200 * time.Millisecond,
		Logger:            slog.Default(),
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

// merge resolves per-request options against the config defaults.
func (c *Config) merge(opts Options) Options {
	if opts.Model == "" {
		opts.Model = c.Model
	}
	if opts.Language == "" {
		// no explicit language: detection follows the provider default
		opts.LanguageDetection = opts.LanguageDetection || c.LanguageDetection
		opts.Language = c.Language
	}
	return opts
}
