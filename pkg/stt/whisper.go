package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/voice-relay/internal/httpc"
)

const (
	openAIBaseURL   = "https://api.openai.com/v1"
	providerWhisper = "whisper"

	// ModelWhisper1 is OpenAI's hosted Whisper model.
	ModelWhisper1 = "whisper-1"
)

// Whisper implements Provider using OpenAI's audio transcription endpoint.
type Whisper struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewWhisper creates a new OpenAI Whisper provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelWhisper1
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &Whisper{
		config:  cfg,
		client:  client,
		logger:  cfg.Logger.With("component", "stt.whisper"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Transcribe posts the clip as multipart form data.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error) {
	start := time.Now()
	opts = w.config.merge(opts)

	format := opts.Format
	if format == "" {
		format = "webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("model", opts.Model)
	mw.WriteField("response_format", "json")
	if !opts.LanguageDetection && opts.Language != "" {
		mw.WriteField("language", opts.Language)
	}
	part, err := mw.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("create form file: %w", err))
	}
	n, err := io.Copy(part, audio)
	if err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("read audio: %w", err))
	}
	if n == 0 {
		return nil, WrapError(providerWhisper, ErrEmptyAudio)
	}
	if err := mw.Close(); err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("close form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(providerWhisper, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, w.parseError(resp)
	}

	var result struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("decode response: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	w.logger.Debug("transcribed audio", "bytes", n, "latency_ms", latency)

	language := result.Language
	if language == "" {
		language = opts.Language
	}
	return &Transcript{
		Text:      strings.TrimSpace(result.Text),
		Status:    StatusCompleted,
		Language:  language,
		Duration:  time.Duration(result.Duration * float64(time.Second)),
		LatencyMs: latency,
	}, nil
}

func (w *Whisper) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerWhisper,
	}
}

// Health checks API connectivity by listing models.
func (w *Whisper) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerWhisper, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return WrapError(providerWhisper, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return w.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (w *Whisper) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// Verify Whisper implements Provider at compile time.
var _ Provider = (*Whisper)(nil)
