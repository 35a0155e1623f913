package stt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	speech "google.golang.org/api/speech/v1"

	"github.com/teslashibe/voice-relay/internal/gcloud"
)

const providerGoogle = "google"

// Google implements Provider using the Cloud Speech-to-Text v1 REST API.
// It authenticates with an API key or a service account file.
type Google struct {
	config  *Config
	service *speech.Service
	logger  *slog.Logger
}

// NewGoogle creates a new Google Cloud Speech provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Language = "en-US"
	cfg.LanguageDetection = false
	cfg.Apply(opts...)

	clientOpts, err := gcloud.Options(ctx, gcloud.Auth{
		APIKey:          cfg.APIKey,
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.BaseURL,
		HTTPClient:      cfg.HTTPClient,
	}, speech.CloudPlatformScope)
	if errors.Is(err, gcloud.ErrNoCredentials) {
		return nil, ErrNoAPIKey
	}
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	svc, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		logger:  cfg.Logger.With("component", "stt.google"),
	}, nil
}

// Transcribe sends the clip inline to speech:recognize.
// Inline audio is limited by Google to about one minute.
func (g *Google) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error) {
	start := time.Now()
	opts = g.config.merge(opts)

	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyAudio)
	}

	rc := &speech.RecognitionConfig{
		LanguageCode:               opts.Language,
		Model:                      opts.Model,
		Encoding:                   googleEncoding(opts.Format),
		SampleRateHertz:            int64(opts.SampleRate),
		EnableAutomaticPunctuation: true,
	}

	resp, err := g.service.Speech.Recognize(&speech.RecognizeRequest{
		Config: rc,
		Audio:  &speech.RecognitionAudio{Content: base64.StdEncoding.EncodeToString(data)},
	}).Context(ctx).Do()
	if err != nil {
		return nil, g.convertError(ctx, err)
	}

	var (
		parts      []string
		confidence float64
		language   = opts.Language
	)
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		parts = append(parts, strings.TrimSpace(alt.Transcript))
		confidence = alt.Confidence
		if r.LanguageCode != "" {
			language = r.LanguageCode
		}
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("transcribed audio", "bytes", len(data), "results", len(resp.Results), "latency_ms", latency)

	return &Transcript{
		Text:       strings.Join(parts, " "),
		Status:     StatusCompleted,
		Language:   language,
		Confidence: confidence,
		LatencyMs:  latency,
	}, nil
}

func (g *Google) convertError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Provider: providerGoogle}
	}
	return WrapError(providerGoogle, err)
}

// googleEncoding maps a container hint to a RecognitionConfig encoding.
// Unknown formats leave detection to the service.
func googleEncoding(format string) string {
	switch strings.ToLower(format) {
	case "webm":
		return "WEBM_OPUS"
	case "ogg", "opus":
		return "OGG_OPUS"
	case "wav", "pcm", "linear16":
		return "LINEAR16"
	case "flac":
		return "FLAC"
	case "mulaw", "ulaw":
		return "MULAW"
	default:
		return ""
	}
}

// Health is a no-op; the REST API has no cheap authenticated probe.
func (g *Google) Health(ctx context.Context) error {
	return nil
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	return nil
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
