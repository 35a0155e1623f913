package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	murfBaseURL  = "https://api.murf.ai/v1"
	providerMurf = "murf"

	// DefaultMurfVoice is the conversational voice.
	DefaultMurfVoice = "en-US-natalie"

	// MurfErrorVoice is the voice used to read error messages aloud.
	MurfErrorVoice = "en-US-ken"
)

// Murf implements Provider for Murf AI. Murf hosts the generated file and
// returns its URL, so results carry URL rather than Audio.
type Murf struct {
	*rest
	baseURL string
}

// NewMurf creates a new Murf TTS provider.
func NewMurf(opts ...Option) (*Murf, error) {
	cfg := DefaultConfig()
	cfg.VoiceID = DefaultMurfVoice
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = murfBaseURL
	}

	return &Murf{
		rest:    newRest(providerMurf, cfg, parseMurfError),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

type murfResponse struct {
	AudioFile        string  `json:"audioFile"`
	AudioLengthInSec float64 `json:"audioLengthInSeconds"`
	RemainingChars   int     `json:"remainingCharacterCount"`
}

// Synthesize calls /speech/generate.
func (m *Murf) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	start := time.Now()

	req, err := m.config.merge(req)
	if err != nil {
		return nil, WrapError(providerMurf, err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"text":       req.Text,
		"voiceId":    req.VoiceID,
		"format":     string(req.Format),
		"sampleRate": req.SampleRate,
	})
	if err != nil {
		return nil, WrapError(providerMurf, fmt.Errorf("marshal payload: %w", err))
	}

	resp, err := m.do(ctx, http.MethodPost, m.baseURL+"/speech/generate", body, m.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result murfResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerMurf, fmt.Errorf("decode response: %w", err))
	}
	if result.AudioFile == "" {
		return nil, WrapError(providerMurf, ErrNoAudio)
	}

	latency := time.Since(start).Milliseconds()
	m.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"voice", req.VoiceID,
		"latency_ms", latency,
		"remaining_chars", result.RemainingChars,
	)

	return &AudioResult{
		URL: result.AudioFile,
		Format: AudioFormat{
			Encoding:   req.Format,
			SampleRate: req.SampleRate,
			Channels:   1,
		},
		Duration:  time.Duration(result.AudioLengthInSec * float64(time.Second)),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Health lists the account's voices to validate the key.
func (m *Murf) Health(ctx context.Context) error {
	resp, err := m.do(ctx, http.MethodGet, m.baseURL+"/speech/voices", nil, m.headers())
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Close releases idle connections.
func (m *Murf) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

func (m *Murf) headers() http.Header {
	h := http.Header{}
	h.Set("api-key", m.config.APIKey)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

func parseMurfError(resp *http.Response) error {
	return readError(providerMurf, resp, func(body []byte) (string, string) {
		var e struct {
			ErrorMessage string `json:"errorMessage"`
			ErrorCode    int    `json:"errorCode"`
		}
		if json.Unmarshal(body, &e) != nil || e.ErrorMessage == "" {
			return "", ""
		}
		code := ""
		if e.ErrorCode != 0 {
			code = fmt.Sprint(e.ErrorCode)
		}
		return e.ErrorMessage, code
	})
}

// Verify Murf implements Provider at compile time.
var _ Provider = (*Murf)(nil)
