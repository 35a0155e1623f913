package relay

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/teslashibe/voice-relay/pkg/fallback"
	"github.com/teslashibe/voice-relay/pkg/inference"
	"github.com/teslashibe/voice-relay/pkg/stt"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

// runStage calls fn under its own deadline. The stage context is detached
// from ctx, so a caller hanging up does not abort a started stage, and the
// wait ends on the deadline even if fn ignores its context.
func runStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		sctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), timeout)
	} else {
		sctx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(sctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-sctx.Done():
		var zero T
		return zero, errStageTimeout
	}
}

// transcribe returns the non-blank transcript of audio.
func (p *Pipeline) transcribe(ctx context.Context, audio Audio, timeout time.Duration) (string, error) {
	if p.stt == nil {
		return "", ErrNotConfigured
	}
	if len(audio.Data) == 0 {
		return "", stt.ErrEmptyAudio
	}
	opts := stt.Options{
		Model:             p.cfg.STTModel,
		LanguageDetection: true,
		Format:            audio.Format,
	}
	tr, err := runStage(ctx, timeout, func(ctx context.Context) (*stt.Transcript, error) {
		return p.stt.Transcribe(ctx, bytes.NewReader(audio.Data), opts)
	})
	if err != nil {
		return "", err
	}
	if tr == nil || tr.Status == stt.StatusError {
		return "", stt.ErrTranscriptionFailed
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// generate returns the model's trimmed reply to prompt.
func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	if p.llm == nil {
		return "", ErrNotConfigured
	}
	resp, err := runStage(ctx, p.cfg.LLMTimeout, func(ctx context.Context) (*inference.ChatResponse, error) {
		return p.llm.Chat(ctx, &inference.ChatRequest{
			Messages: []inference.Message{inference.NewUserMessage(prompt)},
		})
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// synthesize speaks text and returns a retrievable URL. Byte results are
// parked in the clip store.
func (p *Pipeline) synthesize(ctx context.Context, text, voice string, timeout time.Duration) (string, error) {
	if p.tts == nil {
		return "", ErrNotConfigured
	}
	req := tts.Request{
		Text:       text,
		VoiceID:    voice,
		Format:     p.cfg.Format,
		SampleRate: p.cfg.SampleRate,
	}
	res, err := runStage(ctx, timeout, func(ctx context.Context) (*tts.AudioResult, error) {
		return p.tts.Synthesize(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if !res.HasAudio() {
		return "", tts.ErrNoAudio
	}
	if res.URL != "" {
		return res.URL, nil
	}
	id := p.clips.Put(res.Audio, res.Format.ContentType())
	return p.clipPrefix + id, nil
}

// transcribeFallback picks the apology for a failed transcription.
func transcribeFallback(err error) fallback.Kind {
	switch Classify(err) {
	case CredentialMissing:
		return fallback.APIKeyMissing
	case UpstreamTimeout:
		return fallback.STTTimeout
	case EmptyResult:
		return fallback.NoSpeech
	default:
		return fallback.STTError
	}
}

// generateFallback picks the apology for a failed generation.
func generateFallback(err error) fallback.Kind {
	if Classify(err) == UpstreamTimeout {
		return fallback.LLMTimeout
	}
	return fallback.LLMError
}
