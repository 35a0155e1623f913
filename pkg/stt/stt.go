// Package stt provides a unified interface for speech-to-text providers.
//
// Providers accept a recorded clip as an io.Reader and return the full
// transcript. AssemblyAI, OpenAI Whisper and Google Cloud Speech are
// supported; Chain tries several in order.
//
// Example usage:
//
//	provider, _ := stt.NewAssemblyAI(
//	    stt.WithAPIKey(os.Getenv("ASSEMBLYAI_API_KEY")),
//	)
//	defer provider.Close()
//
//	tr, _ := provider.Transcribe(ctx, file, stt.Options{LanguageDetection: true})
//	fmt.Println(tr.Text)
package stt

import (
	"context"
	"io"
	"time"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts a complete audio clip to text.
	// A blank transcript is not an error; callers decide what silence means.
	Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Options tune a single transcription request. Zero values use the
// provider's configured defaults.
type Options struct {
	// Model selects a provider model or tier (e.g. "best", "whisper-1").
	Model string

	// Language is a BCP-47 code. Ignored when LanguageDetection is set.
	Language string

	// LanguageDetection asks the provider to detect the spoken language.
	LanguageDetection bool

	// Format hints the container or codec ("webm", "wav", "mp3", ...).
	Format string

	// SampleRate in Hz for raw formats.
	SampleRate int
}

// Status values reported in Transcript.Status.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Transcript is the result of a transcription.
type Transcript struct {
	// Text is the recognized speech.
	Text string

	// Status is the provider's final job status.
	Status string

	// Language is the detected or requested language code.
	Language string

	// Confidence in [0,1] when the provider reports one.
	Confidence float64

	// Duration of the audio when the provider reports it.
	Duration time.Duration

	// LatencyMs is the wall time of the request.
	LatencyMs int64
}
