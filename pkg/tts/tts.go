// Package tts provides a unified interface for text-to-speech providers.
//
// Providers return either a hosted URL (Murf) or the audio bytes themselves
// (ElevenLabs, OpenAI, Google Cloud). Callers that need a URL for byte
// results store them in pkg/clips.
//
// Example usage:
//
//	provider, _ := tts.NewMurf(
//	    tts.WithAPIKey(os.Getenv("MURF_API_KEY")),
//	    tts.WithVoice("en-US-natalie"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, tts.Request{Text: "Hello world"})
//	// result.URL or result.Audio holds the speech
package tts

import (
	"context"
	"strings"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to speech. Zero fields in req fall back to
	// the provider's configured defaults.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request describes one synthesis call.
type Request struct {
	Text       string
	VoiceID    string
	Format     Encoding
	SampleRate int
}

// AudioResult represents a complete synthesis result.
// Exactly one of URL and Audio is set.
type AudioResult struct {
	// URL is a provider-hosted audio file.
	URL string

	// Audio holds the encoded audio when the provider returns bytes.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the audio length when the provider reports it.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// HasAudio reports whether the result carries a URL or bytes.
func (r *AudioResult) HasAudio() bool {
	return r != nil && (r.URL != "" || len(r.Audio) > 0)
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// ContentType returns the MIME type for the format.
func (f AudioFormat) ContentType() string {
	return f.Encoding.ContentType()
}

// Encoding is an output container/codec name.
type Encoding string

const (
	EncodingMP3  Encoding = "MP3"
	EncodingWAV  Encoding = "WAV"
	EncodingOGG  Encoding = "OGG"
	EncodingFLAC Encoding = "FLAC"
	EncodingPCM  Encoding = "PCM"
)

// ParseEncoding maps a case-insensitive name to an Encoding, defaulting to MP3.
func ParseEncoding(s string) Encoding {
	switch Encoding(strings.ToUpper(strings.TrimSpace(s))) {
	case EncodingWAV:
		return EncodingWAV
	case EncodingOGG:
		return EncodingOGG
	case EncodingFLAC:
		return EncodingFLAC
	case EncodingPCM:
		return EncodingPCM
	default:
		return EncodingMP3
	}
}

// ContentType returns the MIME type browsers expect for the encoding.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingWAV:
		return "audio/wav"
	case EncodingOGG:
		return "audio/ogg"
	case EncodingFLAC:
		return "audio/flac"
	case EncodingPCM:
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	Style float64

	// SpeakerBoost enhances speaker clarity.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		SpeakerBoost:    true,
	}
}
