package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs model IDs
const (
	// ModelTurboV2_5 is the fastest English model (~200ms latency).
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelFlashV2_5 is the fastest multilingual model (~150ms latency).
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model (~300ms latency).
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs implements Provider for ElevenLabs TTS.
type ElevenLabs struct {
	*rest
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
// The voice may be a preset name (see ElevenLabsVoices) or a raw voice ID.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTurboV2_5
	cfg.VoiceID = DefaultElevenLabsVoice
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		rest:    newRest(providerElevenLabs, cfg, parseElevenLabsError),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	start := time.Now()

	req, err := e.config.merge(req)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	voice := ResolveElevenLabsVoice(req.VoiceID)
	if voice == "" {
		return nil, WrapError(providerElevenLabs, ErrNoVoiceID)
	}

	body, err := json.Marshal(e.buildPayload(req.Text))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}

	format, outputFormat := elevenLabsFormat(req.Format, req.SampleRate)
	u := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voice), url.QueryEscape(outputFormat))

	h := http.Header{}
	h.Set("xi-api-key", e.config.APIKey)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", format.ContentType())

	resp, err := e.do(ctx, http.MethodPost, u, body, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerElevenLabs, ErrNoAudio)
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	h := http.Header{}
	h.Set("xi-api-key", e.config.APIKey)

	resp, err := e.do(ctx, http.MethodGet, e.baseURL+"/user", nil, h)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Close releases resources held by the provider.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// buildPayload constructs the API request payload.
func (e *ElevenLabs) buildPayload(text string) map[string]interface{} {
	return map[string]interface{}{
		"text":     text,
		"model_id": e.config.ModelID,
		"voice_settings": map[string]interface{}{
			"stability":         e.config.VoiceSettings.Stability,
			"similarity_boost":  e.config.VoiceSettings.SimilarityBoost,
			"style":             e.config.VoiceSettings.Style,
			"use_speaker_boost": e.config.VoiceSettings.SpeakerBoost,
		},
	}
}

// elevenLabsFormat maps an encoding onto an output_format value.
// Only MP3 and raw PCM are offered at arbitrary rates; anything else is MP3.
func elevenLabsFormat(enc Encoding, rate int) (AudioFormat, string) {
	if enc == EncodingPCM {
		switch rate {
		case 16000, 22050, 24000, 44100:
		default:
			rate = 24000
		}
		return AudioFormat{Encoding: EncodingPCM, SampleRate: rate, Channels: 1}, fmt.Sprintf("pcm_%d", rate)
	}
	return AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1}, "mp3_44100_128"
}

func parseElevenLabsError(resp *http.Response) error {
	return readError(providerElevenLabs, resp, func(body []byte) (string, string) {
		var e struct {
			Detail struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"detail"`
		}
		if json.Unmarshal(body, &e) != nil {
			return "", ""
		}
		return e.Detail.Message, e.Detail.Status
	})
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
