// Package fallback holds the fixed apology copy used when a pipeline stage
// fails, and the helpers that compose text-only replies when audio is lost.
package fallback

import "fmt"

// Kind names a failure that has a fixed user-facing message.
type Kind string

const (
	STTError      Kind = "stt_error"
	LLMError      Kind = "llm_error"
	TTSError      Kind = "tts_error"
	GeneralError  Kind = "general_error"
	NoSpeech      Kind = "no_speech"
	APIKeyMissing Kind = "api_key_missing"

	// Timeout-specific variants of stt_error and llm_error.
	STTTimeout Kind = "stt_timeout"
	LLMTimeout Kind = "llm_timeout"
)

var messages = map[Kind]string{
	STTError:      "I'm sorry, I'm having trouble understanding your audio right now. Please try speaking again or check your microphone.",
	LLMError:      "I'm having trouble connecting to my AI brain right now. Please try again in a moment.",
	TTSError:      "I understand you, but I'm having trouble generating speech right now.",
	GeneralError:  "I'm experiencing some technical difficulties. Please try again in a moment.",
	NoSpeech:      "I didn't hear anything. Could you please speak louder or closer to your microphone?",
	APIKeyMissing: "The service is temporarily unavailable due to configuration issues. Please try again later.",
	STTTimeout:    "Your audio is taking too long to process. Please try with a shorter recording.",
	LLMTimeout:    "I'm taking a bit longer to think. Let me give you a quick response for now.",
}

// Text returns the message for kind, or the general_error message for an
// unknown kind.
func Text(kind Kind) string {
	if msg, ok := messages[kind]; ok {
		return msg
	}
	return messages[GeneralError]
}

// Kinds returns every kind with a message.
func Kinds() []Kind {
	return []Kind{STTError, LLMError, TTSError, GeneralError, NoSpeech, APIKeyMissing, STTTimeout, LLMTimeout}
}

// Map returns a copy of the kind to message table.
func Map() map[Kind]string {
	out := make(map[Kind]string, len(messages))
	for k, v := range messages {
		out[k] = v
	}
	return out
}

// Reason describes why speech synthesis produced no audio.
type Reason int

const (
	// Failed is a rejected or malformed synthesis call.
	Failed Reason = iota
	// TimedOut is a synthesis call that exceeded its deadline.
	TimedOut
	// Unavailable is a missing credential or unexpected error.
	Unavailable
)

// ChatText summarizes a conversation turn whose audio could not be produced.
// It always contains both the transcription and the reply.
func ChatText(transcription, reply string, reason Reason) string {
	var note string
	switch reason {
	case TimedOut:
		note = "(Audio generation taking too long)"
	case Unavailable:
		note = "(Audio generation temporarily unavailable)"
	default:
		note = "(Audio generation failed)"
	}
	return fmt.Sprintf("Your message: '%s'. My response: '%s' %s", transcription, reply, note)
}

// EchoText summarizes an echo request whose audio could not be produced.
func EchoText(transcription string, reason Reason) string {
	switch reason {
	case TimedOut:
		return fmt.Sprintf("I heard: '%s' but audio generation is taking too long.", transcription)
	case Unavailable:
		return fmt.Sprintf("I heard you say: '%s', but I can't generate audio right now.", transcription)
	default:
		return fmt.Sprintf("I heard: '%s' (audio generation temporarily unavailable)", transcription)
	}
}

// ChatStatus is the status line paired with a degraded chat result.
func ChatStatus(reason Reason) string {
	switch reason {
	case TimedOut:
		return "Audio generation timed out"
	case Unavailable:
		return "Conversation processed but audio generation unavailable"
	default:
		return "Conversation processed but audio generation failed"
	}
}

// EchoStatus is the status line paired with a degraded echo result.
func EchoStatus(reason Reason) string {
	switch reason {
	case TimedOut:
		return "Audio generation timed out"
	case Unavailable:
		return "Text transcribed successfully, but audio generation is unavailable"
	default:
		return "Text processed but audio generation failed"
	}
}
