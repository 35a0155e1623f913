package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/voice-relay/internal/gcloud"
)

const (
	providerGoogle = "google"

	// DefaultGoogleVoice is a US English neural voice.
	DefaultGoogleVoice = "en-US-Neural2-F"
)

// googleVoices maps the relay's Murf voice names to similar Google voices.
var googleVoices = map[string]string{
	DefaultMurfVoice: "en-US-Neural2-F",
	MurfErrorVoice:   "en-US-Neural2-D",
}

// Google implements Provider using the Cloud Text-to-Speech v1 REST API.
type Google struct {
	config  *Config
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Google Cloud TTS provider authenticated with an API
// key or a service account file.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.VoiceID = DefaultGoogleVoice
	cfg.Apply(opts...)

	clientOpts, err := gcloud.Options(ctx, gcloud.Auth{
		APIKey:          cfg.APIKey,
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.BaseURL,
		HTTPClient:      cfg.HTTPClient,
	}, texttospeech.CloudPlatformScope)
	if errors.Is(err, gcloud.ErrNoCredentials) {
		return nil, ErrNoAPIKey
	}
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		logger:  cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize calls text:synthesize and decodes the returned audio.
func (g *Google) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	start := time.Now()

	req, err := g.config.merge(req)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}
	voice := googleVoice(req.VoiceID, g.config.VoiceID)
	format, encoding := googleFormat(req.Format, req.SampleRate)

	resp, err := g.service.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: languageOf(voice),
			Name:         voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   encoding,
			SampleRateHertz: int64(format.SampleRate),
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, g.convertError(ctx, err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerGoogle, ErrNoAudio)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"voice", voice,
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Health lists English voices to validate credentials.
func (g *Google) Health(ctx context.Context) error {
	if _, err := g.service.Voices.List().LanguageCode("en-US").Context(ctx).Do(); err != nil {
		return fmt.Errorf("health check: %w", g.convertError(ctx, err))
	}
	return nil
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	return nil
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

// googleVoice resolves Murf names and falls back to def for ids that are
// not Google voice names.
func googleVoice(id, def string) string {
	if v, ok := googleVoices[id]; ok {
		return v
	}
	if strings.Count(id, "-") >= 3 {
		return id
	}
	if v, ok := googleVoices[def]; ok {
		return v
	}
	if strings.Count(def, "-") >= 3 {
		return def
	}
	return DefaultGoogleVoice
}

// languageOf extracts "en-US" from "en-US-Neural2-F".
func languageOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

// googleFormat maps an encoding onto AudioConfig.AudioEncoding. LINEAR16
// responses carry a WAV header, so PCM requests are served as WAV.
func googleFormat(enc Encoding, rate int) (AudioFormat, string) {
	switch enc {
	case EncodingWAV, EncodingPCM:
		return AudioFormat{Encoding: EncodingWAV, SampleRate: rate, Channels: 1}, "LINEAR16"
	case EncodingOGG:
		return AudioFormat{Encoding: EncodingOGG, SampleRate: 48000, Channels: 1}, "OGG_OPUS"
	default:
		return AudioFormat{Encoding: EncodingMP3, SampleRate: rate, Channels: 1}, "MP3"
	}
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
