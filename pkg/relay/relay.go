// Package relay runs the voice pipeline: transcribe a clip, generate a
// reply from the session history, and synthesize the reply to speech.
//
// Chat and Echo never fail. Every stage failure becomes fallback text that
// keeps flowing toward synthesis, and the caller always gets a Result whose
// Status says how much of the pipeline succeeded. The direct operations
// (Transcribe, Speak, Ask) return *Error instead, for the HTTP layer to
// translate.
package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/voice-relay/pkg/clips"
	"github.com/teslashibe/voice-relay/pkg/inference"
	"github.com/teslashibe/voice-relay/pkg/session"
	"github.com/teslashibe/voice-relay/pkg/stt"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

// Status reports how far a pipeline run got.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial_success"
	// StatusFallback means the text came from the fallback table.
	StatusFallback Status = "fallback"
	StatusError    Status = "error"
)

// State is a step of a single run. Every run ends in StateDone.
type State string

const (
	StateIdle             State = "idle"
	StateTranscribing     State = "transcribing"
	StateTranscribed      State = "transcribed"
	StateTranscribeFailed State = "transcribe_failed"
	StateGenerating       State = "generating"
	StateGenerated        State = "generated"
	StateGenerateFailed   State = "generate_failed"
	StateSynthesizing     State = "synthesizing"
	StateSynthesized      State = "synthesized"
	StateSynthesizeFailed State = "synthesize_failed"
	StateDone             State = "done"
)

// Result is the single response shape of Chat and Echo.
type Result struct {
	Transcription string `json:"transcription"`
	ReplyText     string `json:"llm_response"`
	AudioURL      string `json:"audio_url,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	MessageCount  int    `json:"message_count"`
	Status        Status `json:"status"`

	// Set only on degraded results.
	FallbackText string `json:"fallback_text,omitempty"`
	Message      string `json:"message,omitempty"`
	ErrorAudio   bool   `json:"error_audio,omitempty"`

	Trace   []State `json:"-"`
	Timings Timings `json:"-"`
}

// Audio is an uploaded clip.
type Audio struct {
	Data []byte
	// Format is a container hint such as "webm" or "wav".
	Format string
}

// Config holds pipeline limits, voices and stage deadlines.
type Config struct {
	// HistoryWindow is how many prior messages go into the prompt.
	HistoryWindow int

	// Replies longer than MaxReplyRunes are cut to TruncateRunes and
	// TruncateSuffix is appended.
	MaxReplyRunes  int
	TruncateRunes  int
	TruncateSuffix string

	MaxTextChars  int
	MaxAudioBytes int64

	Voice      string
	ErrorVoice string
	Format     tts.Encoding
	SampleRate int
	// STTModel overrides the transcriber's model; empty keeps its default.
	STTModel   string

	STTTimeout         time.Duration
	FileSTTTimeout     time.Duration
	LLMTimeout         time.Duration
	TTSTimeout         time.Duration
	DirectTTSTimeout   time.Duration
	FallbackTTSTimeout time.Duration
	ErrorTTSTimeout    time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:  10,
		MaxReplyRunes:  3000,
		TruncateRunes:  2900,
		TruncateSuffix: "... I have more to share, but let me pause here.",

		MaxTextChars:  5000,
		MaxAudioBytes: 50 << 20,

		Voice:      tts.DefaultMurfVoice,
		ErrorVoice: tts.MurfErrorVoice,
		Format:     tts.EncodingMP3,
		SampleRate: 44100,

		STTTimeout:         45 * time.Second,
		FileSTTTimeout:     60 * time.Second,
		LLMTimeout:         30 * time.Second,
		TTSTimeout:         30 * time.Second,
		DirectTTSTimeout:   45 * time.Second,
		FallbackTTSTimeout: 20 * time.Second,
		ErrorTTSTimeout:    30 * time.Second,
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTranscriber sets the speech-to-text adapter. Without one, the
// transcription stage behaves as if its credential were missing.
func WithTranscriber(p stt.Provider) Option {
	return func(pl *Pipeline) { pl.stt = p }
}

// WithGenerator sets the dialogue adapter.
func WithGenerator(p inference.Provider) Option {
	return func(pl *Pipeline) { pl.llm = p }
}

// WithSynthesizer sets the text-to-speech adapter.
func WithSynthesizer(p tts.Provider) Option {
	return func(pl *Pipeline) { pl.tts = p }
}

// WithClips stores byte results in store and links them as prefix+id.
func WithClips(store *clips.Store, prefix string) Option {
	return func(pl *Pipeline) {
		pl.clips = store
		pl.clipPrefix = prefix
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(pl *Pipeline) { pl.cfg = cfg }
}

// WithStats shares a stats collector, e.g. with the /metrics handler.
func WithStats(s *Stats) Option {
	return func(pl *Pipeline) { pl.stats = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

// Pipeline orchestrates the three adapters around a session store.
// It is safe for concurrent use.
type Pipeline struct {
	store session.Store
	stt   stt.Provider
	llm   inference.Provider
	tts   tts.Provider

	clips      *clips.Store
	clipPrefix string

	cfg    Config
	stats  *Stats
	logger *slog.Logger

	mu        sync.RWMutex
	observers []func(Event)
}

// New creates a Pipeline over store.
func New(store session.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		cfg:        DefaultConfig(),
		clipPrefix: "/audio/",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stats == nil {
		p.stats = NewStats()
	}
	if p.clips == nil {
		p.clips = clips.New(clips.Config{})
	}
	p.logger = p.logger.With("component", "relay.pipeline")
	return p
}

// Config returns the active configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Stats returns the pipeline's stats collector.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// OnResult registers fn to receive an Event after every Chat and Echo run.
// Observers run synchronously and must not block.
func (p *Pipeline) OnResult(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Health reports which adapters are configured.
type Health struct {
	Status   string   `json:"status"`
	Services Services `json:"services"`
	Message  string   `json:"message"`
}

// Services lists adapter availability as "available" or "unavailable".
type Services struct {
	SpeechToText string `json:"speech_to_text"`
	LLM          string `json:"llm"`
	TextToSpeech string `json:"text_to_speech"`
}

// Health is "healthy" when at least one adapter is configured.
func (p *Pipeline) Health() Health {
	up := []bool{p.stt != nil, p.llm != nil, p.tts != nil}
	availability := func(ok bool) string {
		if ok {
			return "available"
		}
		return "unavailable"
	}

	h := Health{
		Status: "degraded",
		Services: Services{
			SpeechToText: availability(up[0]),
			LLM:          availability(up[1]),
			TextToSpeech: availability(up[2]),
		},
		Message: "Some services may have limited functionality",
	}
	if up[0] || up[1] || up[2] {
		h.Status = "healthy"
	}
	if up[0] && up[1] && up[2] {
		h.Message = "All services operational"
	}
	return h
}

// History returns a session's messages.
func (p *Pipeline) History(sessionID string) []session.Message {
	return p.store.History(sessionID)
}

// ClearHistory removes a session and reports whether it existed.
func (p *Pipeline) ClearHistory(sessionID string) bool {
	return p.store.Clear(sessionID)
}

// Sessions lists non-empty sessions.
func (p *Pipeline) Sessions() []session.Summary {
	return p.store.List()
}
