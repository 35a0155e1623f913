package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/voice-relay/internal/httpc"
)

const (
	assemblyAIBaseURL  = "https://api.assemblyai.com"
	providerAssemblyAI = "assemblyai"

	// ModelBest is AssemblyAI's highest accuracy tier.
	ModelBest = "best"
	// ModelNano is AssemblyAI's low cost tier.
	ModelNano = "nano"
)

// AssemblyAI implements Provider using the AssemblyAI upload + transcript
// job API. Transcribe blocks while polling for the job result.
type AssemblyAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewAssemblyAI creates a new AssemblyAI provider.
func NewAssemblyAI(opts ...Option) (*AssemblyAI, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelBest
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = assemblyAIBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &AssemblyAI{
		config:  cfg,
		client:  client,
		logger:  cfg.Logger.With("component", "stt.assemblyai"),
		baseURL: baseURL,
	}, nil
}

type assemblyTranscript struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	Error         string  `json:"error"`
	LanguageCode  string  `json:"language_code"`
	Confidence    float64 `json:"confidence"`
	AudioDuration float64 `json:"audio_duration"`
}

// Transcribe uploads the clip, submits a job and waits for it to finish.
func (a *AssemblyAI) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error) {
	start := time.Now()
	opts = a.config.merge(opts)

	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, WrapError(providerAssemblyAI, fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, WrapError(providerAssemblyAI, ErrEmptyAudio)
	}

	uploadURL, err := a.upload(ctx, data)
	if err != nil {
		return nil, err
	}

	job, err := a.submit(ctx, uploadURL, opts)
	if err != nil {
		return nil, err
	}

	result, err := a.wait(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start).Milliseconds()
	a.logger.Debug("transcribed audio",
		"bytes", len(data),
		"chars", len(result.Text),
		"latency_ms", latency,
		"model", opts.Model,
	)

	language := result.LanguageCode
	if language == "" {
		language = opts.Language
	}
	return &Transcript{
		Text:       result.Text,
		Status:     StatusCompleted,
		Language:   language,
		Confidence: result.Confidence,
		Duration:   time.Duration(result.AudioDuration * float64(time.Second)),
		LatencyMs:  latency,
	}, nil
}

func (a *AssemblyAI) upload(ctx context.Context, data []byte) (string, error) {
	resp, err := a.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", data)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", WrapError(providerAssemblyAI, fmt.Errorf("decode upload: %w", err))
	}
	if out.UploadURL == "" {
		return "", WrapError(providerAssemblyAI, fmt.Errorf("upload returned no url"))
	}
	return out.UploadURL, nil
}

func (a *AssemblyAI) submit(ctx context.Context, audioURL string, opts Options) (*assemblyTranscript, error) {
	payload := map[string]interface{}{
		"audio_url": audioURL,
	}
	if opts.Model != "" {
		payload["speech_model"] = opts.Model
	}
	if opts.LanguageDetection {
		payload["language_detection"] = true
	} else if opts.Language != "" {
		payload["language_code"] = opts.Language
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerAssemblyAI, fmt.Errorf("marshal payload: %w", err))
	}

	resp, err := a.do(ctx, http.MethodPost, "/v2/transcript", "application/json", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var job assemblyTranscript
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, WrapError(providerAssemblyAI, fmt.Errorf("decode transcript: %w", err))
	}
	if job.ID == "" {
		return nil, WrapError(providerAssemblyAI, fmt.Errorf("transcript job has no id"))
	}
	return &job, nil
}

// wait polls the transcript job until it completes, fails, or ctx ends.
func (a *AssemblyAI) wait(ctx context.Context, id string) (*assemblyTranscript, error) {
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := a.do(ctx, http.MethodGet, "/v2/transcript/"+id, "", nil)
		if err != nil {
			return nil, err
		}
		var job assemblyTranscript
		err = json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if err != nil {
			return nil, WrapError(providerAssemblyAI, fmt.Errorf("decode transcript: %w", err))
		}

		switch job.Status {
		case StatusCompleted:
			return &job, nil
		case StatusError:
			return nil, WrapError(providerAssemblyAI, fmt.Errorf("%w: %s", ErrTranscriptionFailed, job.Error))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do sends a request with retries on transport errors, 429 and 5xx.
// Non-2xx responses that are not retried become *APIError.
func (a *AssemblyAI) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
		if err != nil {
			return nil, WrapError(providerAssemblyAI, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", a.config.APIKey)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerAssemblyAI, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = a.parseError(resp)
			a.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, a.parseError(resp)
		}
		return resp, nil
	}

	return nil, lastErr
}

func (a *AssemblyAI) parseError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerAssemblyAI,
	}
}

// Health checks the API key by listing one transcript.
func (a *AssemblyAI) Health(ctx context.Context) error {
	resp, err := a.do(ctx, http.MethodGet, "/v2/transcript?limit=1", "", nil)
	if err != nil {
		return err
	}
	httpc.Drain(resp)
	return nil
}

// Close releases resources held by the provider.
func (a *AssemblyAI) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// Verify AssemblyAI implements Provider at compile time.
var _ Provider = (*AssemblyAI)(nil)
