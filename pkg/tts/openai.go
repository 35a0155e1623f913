package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"
)

// OpenAI voice options
const (
	VoiceAlloy   = "alloy"   // Neutral voice
	VoiceEcho    = "echo"    // Male voice
	VoiceFable   = "fable"   // British accent
	VoiceOnyx    = "onyx"    // Deep male voice
	VoiceNova    = "nova"    // Female voice
	VoiceShimmer = "shimmer" // Soft female voice
)

// OpenAI model options
const (
	ModelTTS1   = "tts-1"    // Standard quality, faster
	ModelTTS1HD = "tts-1-hd" // Higher quality, slower
)

var openAIVoices = map[string]bool{
	VoiceAlloy: true, VoiceEcho: true, VoiceFable: true,
	VoiceOnyx: true, VoiceNova: true, VoiceShimmer: true,
}

// OpenAI implements Provider for OpenAI TTS.
type OpenAI struct {
	*rest
	baseURL string
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceShimmer
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	return &OpenAI{
		rest:    newRest(providerOpenAI, cfg, parseOpenAIError),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Synthesize posts to /audio/speech and returns the audio bytes.
func (o *OpenAI) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	start := time.Now()

	req, err := o.config.merge(req)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	voice := o.voice(req.VoiceID)
	format, responseFormat := openAIFormat(req.Format)

	body, err := json.Marshal(map[string]interface{}{
		"model":           o.config.ModelID,
		"voice":           voice,
		"input":           req.Text,
		"response_format": responseFormat,
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	resp, err := o.do(ctx, http.MethodPost, o.baseURL+"/audio/speech", body, o.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerOpenAI, ErrNoAudio)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", voice,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity.
func (o *OpenAI) Health(ctx context.Context) error {
	resp, err := o.do(ctx, http.MethodGet, o.baseURL+"/models", nil, o.headers())
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// voice keeps OpenAI voice names and replaces anything else (for example a
// Murf voice id forwarded by a chain) with the configured default.
func (o *OpenAI) voice(id string) string {
	if openAIVoices[id] {
		return id
	}
	if id == MurfErrorVoice {
		return VoiceOnyx
	}
	if openAIVoices[o.config.VoiceID] {
		return o.config.VoiceID
	}
	return VoiceShimmer
}

func (o *OpenAI) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+o.config.APIKey)
	h.Set("Content-Type", "application/json")
	return h
}

// openAIFormat maps an encoding onto response_format. OpenAI has no OGG
// container option, so OGG is served as Opus-in-Ogg.
func openAIFormat(enc Encoding) (AudioFormat, string) {
	switch enc {
	case EncodingWAV:
		return AudioFormat{Encoding: EncodingWAV, SampleRate: 24000, Channels: 1}, "wav"
	case EncodingFLAC:
		return AudioFormat{Encoding: EncodingFLAC, SampleRate: 24000, Channels: 1}, "flac"
	case EncodingPCM:
		return AudioFormat{Encoding: EncodingPCM, SampleRate: 24000, Channels: 1}, "pcm"
	case EncodingOGG:
		return AudioFormat{Encoding: EncodingOGG, SampleRate: 48000, Channels: 1}, "opus"
	default:
		return AudioFormat{Encoding: EncodingMP3, SampleRate: 24000, Channels: 1}, "mp3"
	}
}

func parseOpenAIError(resp *http.Response) error {
	return readError(providerOpenAI, resp, func(body []byte) (string, string) {
		var e struct {
			Error struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &e) != nil {
			return "", ""
		}
		return e.Error.Message, e.Error.Code
	})
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
