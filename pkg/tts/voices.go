package tts

// ElevenLabsVoices maps friendly preset names to ElevenLabs voice IDs.
// Use ResolveElevenLabsVoice to look up a voice by name or pass through raw IDs.
var ElevenLabsVoices = map[string]string{
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"aria":      "9BWtsMINqrJLrRacOk9x", // American female, expressive
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// murfToElevenLabs maps the relay's Murf voice names onto presets so a
// fallback chain keeps a similar voice.
var murfToElevenLabs = map[string]string{
	DefaultMurfVoice: "rachel",
	MurfErrorVoice:   "josh",
}

// DefaultElevenLabsVoice is the default voice preset.
const DefaultElevenLabsVoice = "rachel"

// ResolveElevenLabsVoice returns the voice ID for a preset or Murf voice
// name, or the input unchanged if it's already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if preset, ok := murfToElevenLabs[name]; ok {
		name = preset
	}
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}
