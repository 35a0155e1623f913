package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/voice-relay/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock("https://cdn.example/a.mp3")
	ctx := context.Background()

	t.Run("Synthesize returns a URL", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, tts.Request{Text: "Hello world"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.URL != "https://cdn.example/a.mp3" {
			t.Errorf("unexpected URL %q", result.URL)
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if !result.HasAudio() {
			t.Error("expected HasAudio")
		}
	})

	t.Run("Empty text is rejected", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, tts.Request{})
		if !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if len(mock.Calls()) != 3 {
			t.Errorf("expected 3 calls, got %d", len(mock.Calls()))
		}
		if mock.CallCount("Synthesize") != 2 {
			t.Errorf("expected 2 Synthesize calls, got %d", mock.CallCount("Synthesize"))
		}
		if mock.LastCall().Method != "Health" {
			t.Errorf("unexpected last call %q", mock.LastCall().Method)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestBytesMock(t *testing.T) {
	mock := tts.NewBytesMock([]byte("ID3"))
	result, err := mock.Synthesize(context.Background(), tts.Request{Text: "hi", VoiceID: "en-US-ken"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Audio) != "ID3" || result.URL != "" {
		t.Errorf("unexpected result %+v", result)
	}
	if mock.LastCall().Request.VoiceID != "en-US-ken" {
		t.Error("expected voice to be recorded")
	}
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	t.Run("Synthesize returns error", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, tts.Request{Text: "Hello"})
		if !errors.Is(err, testErr) {
			t.Errorf("expected test error, got %v", err)
		}
	})

	t.Run("Health returns error", func(t *testing.T) {
		if !errors.Is(mock.Health(ctx), testErr) {
			t.Error("expected test error")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	t.Run("honors context", func(t *testing.T) {
		mock := tts.WithLatency(tts.NewMock("u"), time.Second, false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := mock.Synthesize(ctx, tts.Request{Text: "Hello"})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Error("latency mock ignored cancellation")
		}
	})

	t.Run("delays then answers", func(t *testing.T) {
		mock := tts.WithLatency(tts.NewMock("u"), 20*time.Millisecond, true)
		start := time.Now()
		result, err := mock.Synthesize(context.Background(), tts.Request{Text: "Hello"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.URL != "u" {
			t.Errorf("unexpected URL %q", result.URL)
		}
		if time.Since(start) < 20*time.Millisecond {
			t.Error("expected delay")
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := tts.DefaultConfig()
	if cfg.Format != tts.EncodingMP3 {
		t.Errorf("expected MP3, got %s", cfg.Format)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("expected 44100, got %d", cfg.SampleRate)
	}
	if cfg.VoiceSettings.Stability != 0.5 || !cfg.VoiceSettings.SpeakerBoost {
		t.Errorf("unexpected voice settings %+v", cfg.VoiceSettings)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithAPIKey("test-key"),
		tts.WithVoice("voice-123"),
		tts.WithModel("model-abc"),
		tts.WithFormat(tts.EncodingWAV, 22050),
		tts.WithTimeout(5*time.Second),
		tts.WithRetry(5, 50*time.Millisecond),
	)

	if cfg.APIKey != "test-key" {
		t.Errorf("expected test-key, got %s", cfg.APIKey)
	}
	if cfg.VoiceID != "voice-123" {
		t.Errorf("expected voice-123, got %s", cfg.VoiceID)
	}
	if cfg.ModelID != "model-abc" {
		t.Errorf("expected model-abc, got %s", cfg.ModelID)
	}
	if cfg.Format != tts.EncodingWAV || cfg.SampleRate != 22050 {
		t.Errorf("unexpected format %s/%d", cfg.Format, cfg.SampleRate)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 5 || cfg.RetryDelay != 50*time.Millisecond {
		t.Errorf("unexpected retry config %d/%v", cfg.MaxRetries, cfg.RetryDelay)
	}

	cfg.Apply(tts.WithVoice(""))
	if cfg.VoiceID != "voice-123" {
		t.Error("empty WithVoice should keep the voice")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := tts.DefaultConfig()
	if !errors.Is(cfg.Validate(), tts.ErrNoAPIKey) {
		t.Error("expected ErrNoAPIKey")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConstructorsRequireKey(t *testing.T) {
	if _, err := tts.NewMurf(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("Murf: expected ErrNoAPIKey, got %v", err)
	}
	if _, err := tts.NewElevenLabs(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("ElevenLabs: expected ErrNoAPIKey, got %v", err)
	}
	if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("OpenAI: expected ErrNoAPIKey, got %v", err)
	}
	if _, err := tts.NewGoogle(context.Background()); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("Google: expected ErrNoAPIKey, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name         string
		err          *tts.APIError
		rateLimited  bool
		unauthorized bool
		retryable    bool
	}{
		{"rate limited", &tts.APIError{StatusCode: 429}, true, false, true},
		{"unauthorized", &tts.APIError{StatusCode: 401}, false, true, false},
		{"forbidden", &tts.APIError{StatusCode: 403}, false, true, false},
		{"server error", &tts.APIError{StatusCode: 502}, false, false, true},
		{"bad request", &tts.APIError{StatusCode: 400}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.IsRateLimited() != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v", tt.err.IsRateLimited())
			}
			if tt.err.IsUnauthorized() != tt.unauthorized {
				t.Errorf("IsUnauthorized() = %v", tt.err.IsUnauthorized())
			}
			if tt.err.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v", tt.err.IsRetryable())
			}
		})
	}
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		in          string
		want        tts.Encoding
		contentType string
	}{
		{"mp3", tts.EncodingMP3, "audio/mpeg"},
		{" WAV ", tts.EncodingWAV, "audio/wav"},
		{"ogg", tts.EncodingOGG, "audio/ogg"},
		{"flac", tts.EncodingFLAC, "audio/flac"},
		{"pcm", tts.EncodingPCM, "audio/pcm"},
		{"", tts.EncodingMP3, "audio/mpeg"},
		{"aiff", tts.EncodingMP3, "audio/mpeg"},
	}
	for _, tt := range tests {
		got := tts.ParseEncoding(tt.in)
		if got != tt.want {
			t.Errorf("ParseEncoding(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if got.ContentType() != tt.contentType {
			t.Errorf("%s.ContentType() = %s, want %s", got, got.ContentType(), tt.contentType)
		}
	}
}

func TestResolveElevenLabsVoice(t *testing.T) {
	if got := tts.ResolveElevenLabsVoice("rachel"); got != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("preset not resolved: %s", got)
	}
	if got := tts.ResolveElevenLabsVoice(tts.DefaultMurfVoice); got != tts.ElevenLabsVoices["rachel"] {
		t.Errorf("Murf voice not mapped: %s", got)
	}
	if got := tts.ResolveElevenLabsVoice("raw-id"); got != "raw-id" {
		t.Errorf("raw id changed: %s", got)
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("first provider succeeds", func(t *testing.T) {
		p1 := tts.NewMock("one")
		p2 := tts.NewMock("two")
		chain, err := tts.NewChain(p1, p2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := chain.Synthesize(ctx, tts.Request{Text: "Hello"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.URL != "one" {
			t.Errorf("expected first provider, got %q", result.URL)
		}
		if p2.CallCount("Synthesize") != 0 {
			t.Error("second provider should not be called")
		}
	})

	t.Run("fallback on failure", func(t *testing.T) {
		p1 := tts.WithError(errors.New("provider 1 failed"))
		p2 := tts.NewMock("two")
		chain, _ := tts.NewChain(p1, p2)

		result, err := chain.Synthesize(ctx, tts.Request{Text: "Hello"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.URL != "two" {
			t.Errorf("expected fallback provider, got %q", result.URL)
		}
	})

	t.Run("all providers fail", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.WithError(errors.New("1")), tts.WithError(errors.New("2")))

		_, err := chain.Synthesize(ctx, tts.Request{Text: "Hello"})
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %T", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
	})

	t.Run("empty text is not retried", func(t *testing.T) {
		p1 := tts.NewMock("one")
		p2 := tts.NewMock("two")
		chain, _ := tts.NewChain(p1, p2)

		_, err := chain.Synthesize(ctx, tts.Request{})
		if !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
		if p2.CallCount("Synthesize") != 0 {
			t.Error("second provider should not be called")
		}
	})

	t.Run("empty chain", func(t *testing.T) {
		if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("health with one healthy provider", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.WithError(errors.New("down")), tts.NewMock("u"))
		if err := chain.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("close closes all", func(t *testing.T) {
		p1 := tts.NewMock("one")
		p2 := tts.NewMock("two")
		chain, _ := tts.NewChain(p1, p2)
		chain.Close()
		if p1.CallCount("Close") != 1 || p2.CallCount("Close") != 1 {
			t.Error("expected both providers closed")
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("inner error")
	err := tts.WrapError("test-provider", inner)

	var provErr *tts.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatal("expected ProviderError")
	}
	if provErr.Provider != "test-provider" {
		t.Errorf("expected test-provider, got %s", provErr.Provider)
	}
	if !errors.Is(err, inner) {
		t.Error("expected to unwrap to inner error")
	}
	if tts.WrapError("x", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}
