package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Chain implements Provider by trying multiple providers in order.
// The clip is buffered once so each provider reads it from the start.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain that tries providers in order.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		providers: providers,
		logger:    slog.Default().With("component", "stt.chain"),
	}, nil
}

// Transcribe tries each provider until one succeeds.
func (c *Chain) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("stt chain: read audio: %w", err)
	}

	var errs []error
	for i, p := range c.providers {
		tr, err := p.Transcribe(ctx, bytes.NewReader(data), opts)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider_index", i)
			}
			return tr, nil
		}

		errs = append(errs, err)
		c.logger.Warn("provider failed, trying next", "provider_index", i, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ChainError{Errors: errs}
}

// Health returns an error only if every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var lastErr error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
}

// Close closes all providers.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
