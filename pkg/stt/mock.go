package stt

import (
	"context"
	"io"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// TranscribeFunc receives the clip bytes already read from the reader.
	TranscribeFunc func(ctx context.Context, audio []byte, opts Options) (*Transcript, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Bytes  int
	Opts   Options
	Time   time.Time
}

// NewMock returns a mock that transcribes every clip to text.
func NewMock(text string) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio []byte, opts Options) (*Transcript, error) {
			return &Transcript{Text: text, Status: StatusCompleted, Language: opts.Language}, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio []byte, opts Options) (*Transcript, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error { return err },
	}
}

// WithLatency delays the mock's transcription, honoring ctx.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	inner := m.TranscribeFunc
	m.TranscribeFunc = func(ctx context.Context, audio []byte, opts Options) (*Transcript, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if inner != nil {
			return inner(ctx, audio, opts)
		}
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m
}

// Transcribe reads the clip, records the call and delegates to TranscribeFunc.
func (m *Mock) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	m.record(MockCall{Method: "Transcribe", Bytes: len(data), Opts: opts})
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, data, opts)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record(MockCall{Method: "Health"})
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record(MockCall{Method: "Close"})
	return nil
}

func (m *Mock) record(call MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call.Time = time.Now()
	m.calls = append(m.calls, call)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
