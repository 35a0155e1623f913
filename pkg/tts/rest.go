package tts

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/voice-relay/internal/httpc"
)

// rest is the JSON-over-HTTP plumbing shared by the REST providers.
type rest struct {
	provider   string
	client     *http.Client
	config     *Config
	logger     *slog.Logger
	parseError func(*http.Response) error
}

func newRest(provider string, cfg *Config, parseError func(*http.Response) error) *rest {
	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}
	return &rest{
		provider:   provider,
		client:     client,
		config:     cfg,
		logger:     cfg.Logger.With("component", "tts."+provider),
		parseError: parseError,
	}
}

// do sends the request, retrying on 429 and 5xx. Any other non-2xx
// status is returned as an *APIError.
func (r *rest) do(ctx context.Context, method, url string, body []byte, header http.Header) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, WrapError(r.provider, err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(r.provider, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = r.parseError(resp)
			resp.Body.Close()
			r.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			return nil, r.parseError(resp)
		}

		return resp, nil
	}

	return nil, lastErr
}

// readError builds an APIError from a body, preferring msg when the
// provider-specific decoder found one.
func readError(provider string, resp *http.Response, decode func([]byte) (msg, code string)) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	message := string(body)
	code := ""
	if m, c := decode(body); m != "" {
		message, code = m, c
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   provider,
	}
}
