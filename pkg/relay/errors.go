package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/teslashibe/voice-relay/pkg/fallback"
	"github.com/teslashibe/voice-relay/pkg/inference"
	"github.com/teslashibe/voice-relay/pkg/stt"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

// Kind is the relay error taxonomy.
type Kind string

const (
	CredentialMissing Kind = "credential_missing"
	UpstreamTimeout   Kind = "upstream_timeout"
	// UpstreamRejected covers non-2xx answers and malformed payloads.
	UpstreamRejected Kind = "upstream_rejected"
	EmptyResult      Kind = "empty_result"
	PayloadTooLarge  Kind = "payload_too_large"
	PayloadInvalid   Kind = "payload_invalid"
	Internal         Kind = "internal"
)

// Stage names the adapter an error came from.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
	StageInput      Stage = "input"
)

var (
	// ErrNotConfigured is reported for a stage whose adapter is absent.
	ErrNotConfigured = errors.New("relay: adapter not configured")

	// ErrEmpty is reported for blank transcripts and replies.
	ErrEmpty = errors.New("relay: empty result")

	errStageTimeout = fmt.Errorf("relay: stage deadline exceeded: %w", context.DeadlineExceeded)
)

// Error is returned by the operations that surface failures to the caller.
type Error struct {
	Kind  Kind
	Stage Stage

	// Message is a short caller-facing summary.
	Message string

	// Fallback is the caller-facing hint shown next to Message.
	Fallback string

	// RateLimited and Unauthorized echo the upstream HTTP status class.
	RateLimited  bool
	Unauthorized bool

	// StatusCode is the upstream HTTP status, when there was one.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("relay %s: %s: %v", e.Stage, msg, e.Err)
	}
	return fmt.Sprintf("relay %s: %s", e.Stage, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an adapter error onto the taxonomy. nil classifies as "".
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}

	switch {
	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, stt.ErrNoAPIKey),
		errors.Is(err, inference.ErrNoAPIKey),
		errors.Is(err, tts.ErrNoAPIKey):
		return CredentialMissing
	case errors.Is(err, context.DeadlineExceeded):
		return UpstreamTimeout
	case errors.Is(err, ErrEmpty),
		errors.Is(err, stt.ErrEmptyAudio),
		errors.Is(err, inference.ErrEmptyResponse),
		errors.Is(err, tts.ErrEmptyText):
		return EmptyResult
	case errors.Is(err, stt.ErrTranscriptionFailed),
		errors.Is(err, tts.ErrNoAudio):
		return UpstreamRejected
	}

	if status := statusOf(err); status != 0 {
		return UpstreamRejected
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return UpstreamTimeout
	}
	return Internal
}

// statusOf digs the upstream HTTP status out of any adapter APIError.
func statusOf(err error) int {
	var (
		sttErr *stt.APIError
		llmErr *inference.APIError
		ttsErr *tts.APIError
	)
	switch {
	case errors.As(err, &sttErr):
		return sttErr.StatusCode
	case errors.As(err, &llmErr):
		return llmErr.StatusCode
	case errors.As(err, &ttsErr):
		return ttsErr.StatusCode
	}
	return 0
}

// isNetwork reports a transport failure that is not a timeout.
func isNetwork(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && !ne.Timeout()
}

// newError wraps err for stage with its classification and upstream status.
func newError(stage Stage, message, fb string, err error) *Error {
	status := statusOf(err)
	kind := Classify(err)
	if kind == Internal && isNetwork(err) {
		kind = UpstreamRejected
	}
	return &Error{
		Kind:         kind,
		Stage:        stage,
		Message:      message,
		Fallback:     fb,
		RateLimited:  status == 429,
		Unauthorized: status == 401 || status == 403,
		StatusCode:   status,
		Err:          err,
	}
}

// reason picks the fallback_text variant for a synthesis failure.
func reason(err error) fallback.Reason {
	switch Classify(err) {
	case CredentialMissing:
		return fallback.Unavailable
	case UpstreamTimeout:
		return fallback.TimedOut
	default:
		return fallback.Failed
	}
}
