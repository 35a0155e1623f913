package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/voice-relay/internal/config"
	"github.com/teslashibe/voice-relay/pkg/inference"
	"github.com/teslashibe/voice-relay/pkg/stt"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

// Each builder returns a nil Provider, not an error, when no listed
// provider has credentials; the pipeline then runs that stage degraded.

func buildSTT(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stt.Provider, error) {
	var providers []stt.Provider
	for _, name := range config.Chain(cfg.STTProvider, cfg.STTFallback) {
		p, err := newSTT(ctx, name, cfg, logger)
		if errors.Is(err, stt.ErrNoAPIKey) {
			logger.Warn("speech-to-text provider not configured", "provider", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stt %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	}
	chain, err := stt.NewChain(providers...)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func newSTT(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) (stt.Provider, error) {
	common := []stt.Option{stt.WithLogger(logger), stt.WithTimeout(cfg.FileSTTTimeout)}
	switch name {
	case config.STTWhisper:
		w, err := stt.NewWhisper(append(common, stt.WithAPIKey(cfg.OpenAIKey))...)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.STTGoogle:
		g, err := stt.NewGoogle(ctx, append(common,
			stt.WithAPIKey(cfg.GoogleAPIKey),
			stt.WithCredentialsFile(cfg.GoogleCredentials),
		)...)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		a, err := stt.NewAssemblyAI(append(common, stt.WithAPIKey(cfg.AssemblyAIKey))...)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

func buildLLM(ctx context.Context, cfg *config.Config, logger *slog.Logger) (inference.Provider, error) {
	var providers []inference.Provider
	for _, name := range config.Chain(cfg.LLMProvider, cfg.LLMFallback) {
		p, err := newLLM(ctx, name, cfg, logger)
		if errors.Is(err, inference.ErrNoAPIKey) {
			logger.Warn("llm provider not configured", "provider", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("llm %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	}
	chain, err := inference.NewChain(providers...)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func newLLM(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) (inference.Provider, error) {
	opts := []inference.Option{
		inference.WithLogger(logger),
		inference.WithTimeout(cfg.LLMTimeout),
	}
	// LLM_MODEL applies to the primary provider only
	if name == cfg.LLMProvider {
		opts = append(opts, inference.WithModel(cfg.LLMModel))
	}

	switch name {
	case config.LLMOpenAI:
		opts = append(opts, inference.WithAPIKey(cfg.OpenAIKey))
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, inference.WithBaseURL(cfg.OpenAIBaseURL))
		}
		c, err := inference.NewClient(opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		g, err := inference.NewGemini(ctx, append(opts, inference.WithAPIKey(cfg.GeminiKey))...)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func buildTTS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	var providers []tts.Provider
	for _, name := range config.Chain(cfg.TTSProvider, cfg.TTSFallback) {
		p, err := newTTS(ctx, name, cfg, logger)
		if errors.Is(err, tts.ErrNoAPIKey) {
			logger.Warn("text-to-speech provider not configured", "provider", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("tts %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	}
	chain, err := tts.NewChainWithLogger(logger, providers...)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func newTTS(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	common := []tts.Option{
		tts.WithLogger(logger),
		tts.WithFormat(tts.ParseEncoding(cfg.AudioFormat), cfg.SampleRate),
		tts.WithTimeout(cfg.DirectTTSTimeout),
	}
	switch name {
	case config.TTSElevenLabs:
		e, err := tts.NewElevenLabs(append(common,
			tts.WithAPIKey(cfg.ElevenLabsKey),
			tts.WithVoice(cfg.ElevenLabsVoice),
		)...)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.TTSOpenAI:
		o, err := tts.NewOpenAI(append(common, tts.WithAPIKey(cfg.OpenAIKey))...)
		if err != nil {
			return nil, err
		}
		return o, nil
	case config.TTSGoogle:
		g, err := tts.NewGoogle(ctx, append(common,
			tts.WithAPIKey(cfg.GoogleAPIKey),
			tts.WithCredentialsFile(cfg.GoogleCredentials),
		)...)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		m, err := tts.NewMurf(append(common,
			tts.WithAPIKey(cfg.MurfKey),
			tts.WithVoice(cfg.Voice),
		)...)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
