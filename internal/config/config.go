package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in *_PROVIDER settings.
const (
	STTAssemblyAI = "assemblyai"
	STTWhisper    = "whisper"
	STTGoogle     = "google"

	LLMGemini = "gemini"
	LLMOpenAI = "openai"

	TTSMurf       = "murf"
	TTSElevenLabs = "elevenlabs"
	TTSOpenAI     = "openai"
	TTSGoogle     = "google"
)

// Config holds everything cmd/relay needs to wire the service.
type Config struct {
	Port      int
	LogLevel  string
	Debug     bool
	StaticDir string

	// Credentials. An empty key leaves the matching adapter unconfigured.
	AssemblyAIKey     string
	GeminiKey         string
	MurfKey           string
	OpenAIKey         string
	ElevenLabsKey     string
	GoogleAPIKey      string
	GoogleCredentials string // path to a service account JSON file

	// Providers are tried primary first, then the *Fallback lists in order.
	STTProvider   string
	STTFallback   []string
	LLMProvider   string
	LLMFallback   []string
	LLMModel      string
	OpenAIBaseURL string
	TTSProvider   string
	TTSFallback   []string

	Voice           string
	ErrorVoice      string
	ElevenLabsVoice string
	AudioFormat     string
	SampleRate      int

	HistoryWindow int
	MaxMessages   int
	MaxSessions   int
	ClipTTL       time.Duration
	MaxClips      int

	STTTimeout         time.Duration
	FileSTTTimeout     time.Duration
	LLMTimeout         time.Duration
	TTSTimeout         time.Duration
	DirectTTSTimeout   time.Duration
	FallbackTTSTimeout time.Duration
	ErrorTTSTimeout    time.Duration
}

// Load reads .env (if present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := &Config{
		Port:      Int("PORT", 8000),
		LogLevel:  String("LOG_LEVEL", "info"),
		Debug:     Bool("DEBUG", false),
		StaticDir: String("STATIC_DIR", "static"),

		AssemblyAIKey:     Secret("ASSEMBLYAI_API_KEY"),
		GeminiKey:         Secret("GEMINI_API_KEY"),
		MurfKey:           Secret("MURF_API_KEY"),
		OpenAIKey:         Secret("OPENAI_API_KEY"),
		ElevenLabsKey:     Secret("ELEVENLABS_API_KEY"),
		GoogleAPIKey:      Secret("GOOGLE_API_KEY"),
		GoogleCredentials: String("GOOGLE_APPLICATION_CREDENTIALS", ""),

		STTProvider:   String("STT_PROVIDER", STTAssemblyAI),
		STTFallback:   List("STT_FALLBACK"),
		LLMProvider:   String("LLM_PROVIDER", LLMGemini),
		LLMFallback:   List("LLM_FALLBACK"),
		LLMModel:      String("LLM_MODEL", ""),
		OpenAIBaseURL: String("OPENAI_BASE_URL", ""),
		TTSProvider:   String("TTS_PROVIDER", TTSMurf),
		TTSFallback:   List("TTS_FALLBACK"),

		Voice:           String("TTS_VOICE", "en-US-natalie"),
		ErrorVoice:      String("TTS_ERROR_VOICE", "en-US-ken"),
		ElevenLabsVoice: String("ELEVENLABS_VOICE_ID", ""),
		AudioFormat:     String("TTS_FORMAT", "MP3"),
		SampleRate:      Int("TTS_SAMPLE_RATE", 44100),

		HistoryWindow: Int("HISTORY_WINDOW", 10),
		MaxMessages:   Int("SESSION_MAX_MESSAGES", 200),
		MaxSessions:   Int("SESSION_MAX_SESSIONS", 1000),
		ClipTTL:       Duration("AUDIO_CLIP_TTL", 30*time.Minute),
		MaxClips:      Int("AUDIO_CLIP_MAX", 256),

		STTTimeout:         Duration("STT_TIMEOUT", 45*time.Second),
		FileSTTTimeout:     Duration("STT_FILE_TIMEOUT", 60*time.Second),
		LLMTimeout:         Duration("LLM_TIMEOUT", 30*time.Second),
		TTSTimeout:         Duration("TTS_TIMEOUT", 30*time.Second),
		DirectTTSTimeout:   Duration("TTS_DIRECT_TIMEOUT", 45*time.Second),
		FallbackTTSTimeout: Duration("TTS_FALLBACK_TIMEOUT", 20*time.Second),
		ErrorTTSTimeout:    Duration("TTS_ERROR_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and provider names.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if err := checkProviders("STT", []string{STTAssemblyAI, STTWhisper, STTGoogle}, c.STTProvider, c.STTFallback); err != nil {
		return err
	}
	if err := checkProviders("LLM", []string{LLMGemini, LLMOpenAI}, c.LLMProvider, c.LLMFallback); err != nil {
		return err
	}
	if err := checkProviders("TTS", []string{TTSMurf, TTSElevenLabs, TTSOpenAI, TTSGoogle}, c.TTSProvider, c.TTSFallback); err != nil {
		return err
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("config: HISTORY_WINDOW must be >= 0")
	}
	return nil
}

func checkProviders(stage string, known []string, primary string, fallback []string) error {
	if !slices.Contains(known, primary) {
		return fmt.Errorf("config: unknown %s_PROVIDER %q", stage, primary)
	}
	for _, name := range fallback {
		if !slices.Contains(known, name) {
			return fmt.Errorf("config: unknown %s_FALLBACK entry %q", stage, name)
		}
	}
	return nil
}

// Chain returns primary followed by fallback with duplicates removed.
func Chain(primary string, fallback []string) []string {
	out := []string{primary}
	for _, name := range fallback {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// GoogleConfigured reports whether any Google credential is available.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleAPIKey != "" || c.GoogleCredentials != ""
}
