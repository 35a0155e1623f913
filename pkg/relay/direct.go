package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/voice-relay/pkg/fallback"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

// Transcribe converts an uploaded file to text. Unlike Chat, every failure
// is returned as *Error.
func (p *Pipeline) Transcribe(ctx context.Context, audio Audio) (string, error) {
	return p.transcribeDirect(ctx, audio, p.cfg.FileSTTTimeout)
}

func (p *Pipeline) transcribeDirect(ctx context.Context, audio Audio, timeout time.Duration) (string, error) {
	if p.stt == nil {
		return "", &Error{
			Kind:     CredentialMissing,
			Stage:    StageTranscribe,
			Message:  "Speech recognition service unavailable",
			Fallback: fallback.Text(fallback.APIKeyMissing),
			Err:      ErrNotConfigured,
		}
	}
	if len(audio.Data) == 0 {
		return "", &Error{
			Kind:     PayloadInvalid,
			Stage:    StageInput,
			Message:  "Invalid audio file",
			Fallback: "Please upload a valid audio file",
		}
	}
	if p.cfg.MaxAudioBytes > 0 && int64(len(audio.Data)) > p.cfg.MaxAudioBytes {
		return "", &Error{
			Kind:     PayloadTooLarge,
			Stage:    StageInput,
			Message:  "File too large",
			Fallback: fmt.Sprintf("Please upload a smaller audio file (max %dMB)", p.cfg.MaxAudioBytes>>20),
		}
	}

	text, err := p.transcribe(ctx, audio, timeout)
	if err == nil {
		return text, nil
	}
	p.logger.Warn("file transcription failed", "error", err)

	switch Classify(err) {
	case EmptyResult:
		return "", newError(StageTranscribe, "No speech detected", fallback.Text(fallback.NoSpeech), err)
	case UpstreamTimeout:
		return "", newError(StageTranscribe, "Transcription timeout",
			"The audio file is taking too long to process. Please try with a shorter recording.", err)
	case CredentialMissing:
		return "", newError(StageTranscribe, "Speech recognition service unavailable", fallback.Text(fallback.APIKeyMissing), err)
	}
	return "", newError(StageTranscribe, "Transcription failed: "+err.Error(), fallback.Text(fallback.STTError), err)
}

// Speak synthesizes text with voice, or the default voice when empty, and
// returns the audio URL.
func (p *Pipeline) Speak(ctx context.Context, text, voice string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{
			Kind:     PayloadInvalid,
			Stage:    StageInput,
			Message:  "Empty text provided",
			Fallback: "Please provide some text to convert to speech",
		}
	}
	if p.cfg.MaxTextChars > 0 && utf8.RuneCountInString(text) > p.cfg.MaxTextChars {
		return "", &Error{
			Kind:     PayloadTooLarge,
			Stage:    StageInput,
			Message:  "Text too long",
			Fallback: fmt.Sprintf("Please provide shorter text (max %d characters)", p.cfg.MaxTextChars),
		}
	}
	if voice == "" {
		voice = p.cfg.Voice
	}

	url, err := p.synthesize(ctx, text, voice, p.cfg.DirectTTSTimeout)
	if err == nil {
		return url, nil
	}
	p.logger.Warn("speech synthesis failed", "voice", voice, "error", err)
	return "", speakError(err)
}

func speakError(err error) *Error {
	e := newError(StageSynthesize, "", fallback.Text(fallback.TTSError), err)
	switch {
	case e.Kind == CredentialMissing:
		e.Message = "Text-to-speech service unavailable"
		e.Fallback = fallback.Text(fallback.APIKeyMissing)
	case e.Unauthorized:
		e.Message = "Authentication failed"
		e.Fallback = "The text-to-speech service is currently unavailable due to authentication issues"
	case e.RateLimited:
		e.Message = "Rate limit exceeded"
		e.Fallback = "Too many requests. Please wait a moment and try again."
	case e.StatusCode != 0:
		e.Message = fmt.Sprintf("TTS service error: %d", e.StatusCode)
	case e.Kind == UpstreamTimeout:
		e.Message = "Request timeout"
		e.Fallback = "Audio generation is taking too long. Please try again with shorter text."
	case isNetwork(err):
		e.Message = "Network error"
		e.Fallback = "Unable to connect to the text-to-speech service. Please check your connection and try again."
	case errors.Is(err, tts.ErrNoAudio):
		e.Message = "TTS service error: no audio returned"
	default:
		e.Kind = Internal
		e.Message = "Unexpected error: " + err.Error()
	}
	return e
}

// Ask sends text to the dialogue generator as-is. No history is read or
// written and the reply is not truncated.
func (p *Pipeline) Ask(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{
			Kind:     PayloadInvalid,
			Stage:    StageInput,
			Message:  "Empty text provided",
			Fallback: "Please provide a question or message",
		}
	}
	if p.cfg.MaxTextChars > 0 && utf8.RuneCountInString(text) > p.cfg.MaxTextChars {
		return "", &Error{
			Kind:     PayloadTooLarge,
			Stage:    StageInput,
			Message:  "Text too long",
			Fallback: fmt.Sprintf("Please provide shorter text (max %d characters)", p.cfg.MaxTextChars),
		}
	}

	reply, err := p.generate(ctx, text)
	if err != nil {
		p.logger.Warn("text query failed", "error", err)
		return "", generateError(err)
	}
	return reply, nil
}

func generateError(err error) *Error {
	switch Classify(err) {
	case CredentialMissing:
		return newError(StageGenerate, "LLM service unavailable", fallback.Text(fallback.APIKeyMissing), err)
	case UpstreamTimeout:
		return newError(StageGenerate, "Request timeout", fallback.Text(fallback.LLMTimeout), err)
	}
	return newError(StageGenerate, "LLM query failed", fallback.Text(fallback.LLMError), err)
}

// QueryResult is the body of a stateless voice query.
type QueryResult struct {
	AudioURL      string `json:"audio_url"`
	Transcription string `json:"transcription"`
	ReplyText     string `json:"llm_response"`
	Status        Status `json:"status"`
}

// Query answers one utterance without touching any session. Unlike Chat,
// the first failing stage ends the request with *Error.
func (p *Pipeline) Query(ctx context.Context, audio Audio) (*QueryResult, error) {
	text, err := p.transcribeDirect(ctx, audio, p.cfg.STTTimeout)
	if err != nil {
		return nil, err
	}

	reply, err := p.generate(ctx, BuildQueryPrompt(text))
	if err != nil {
		p.logger.Warn("voice query generation failed", "error", err)
		return nil, generateError(err)
	}
	reply = Truncate(reply, p.cfg.MaxReplyRunes, p.cfg.TruncateRunes, p.cfg.TruncateSuffix)

	url, err := p.synthesize(ctx, reply, p.cfg.Voice, p.cfg.TTSTimeout)
	if err != nil {
		p.logger.Warn("voice query synthesis failed", "error", err)
		return nil, speakError(err)
	}
	return &QueryResult{
		AudioURL:      url,
		Transcription: text,
		ReplyText:     reply,
		Status:        StatusSuccess,
	}, nil
}

// ErrorAudioResult is the body of an error-audio request. It never
// carries an error; Status says what happened.
type ErrorAudioResult struct {
	AudioURL *string `json:"audio_url"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
}

// ErrorAudio vocalizes message with the error voice so a client can play
// its own error copy.
func (p *Pipeline) ErrorAudio(ctx context.Context, message string) ErrorAudioResult {
	if strings.TrimSpace(message) == "" {
		message = "An error occurred"
	}
	if p.tts == nil {
		return ErrorAudioResult{Status: "unavailable", Message: "TTS service unavailable"}
	}

	url, err := p.synthesize(ctx, message, p.cfg.ErrorVoice, p.cfg.ErrorTTSTimeout)
	switch {
	case err == nil:
		return ErrorAudioResult{AudioURL: &url, Status: "success", Message: "Error audio generated successfully"}
	case statusOf(err) != 0, errors.Is(err, tts.ErrNoAudio):
		p.logger.Warn("error audio rejected", "error", err)
		return ErrorAudioResult{Status: "failed", Message: "Could not generate error audio"}
	default:
		p.logger.Warn("error audio failed", "error", err)
		return ErrorAudioResult{Status: "error", Message: err.Error()}
	}
}
