package relay

import (
	"strings"

	"github.com/teslashibe/voice-relay/pkg/session"
)

const (
	promptPreamble = "You are a helpful AI assistant. Please respond in a conversational and concise manner (keep it under 2500 characters to fit TTS limits)."
	promptClosing  = "Please respond to the user's latest message."
)

// BuildPrompt renders history and the new utterance as one prompt string.
func BuildPrompt(history []session.Message, utterance string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation history:\n")
		for _, m := range history {
			if m.Role == session.RoleUser {
				b.WriteString("User: ")
			} else {
				b.WriteString("Assistant: ")
			}
			b.WriteString(m.Content)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("User: ")
	b.WriteString(utterance)
	b.WriteString("\n\n")
	b.WriteString(promptClosing)
	return b.String()
}

// BuildQueryPrompt wraps a single utterance with no history.
func BuildQueryPrompt(utterance string) string {
	return "You are a helpful AI assistant. Please respond to the following in a conversational and concise manner (keep it under 2500 characters to fit TTS limits): \n\n" + utterance
}

// Truncate cuts text longer than max runes down to keep runes plus suffix.
// Lengths are counted in runes so multi-byte text is never split mid-character.
func Truncate(text string, max, keep int, suffix string) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if keep > len(runes) {
		keep = len(runes)
	}
	return string(runes[:keep]) + suffix
}
