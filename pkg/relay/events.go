package relay

import (
	"time"

	"github.com/google/uuid"
)

// Event describes one finished Chat or Echo run.
type Event struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	SessionID string          `json:"session_id,omitempty"`
	Status    Status          `json:"status"`
	Trace     []State         `json:"trace"`
	LatencyMs map[Stage]int64 `json:"latency_ms"`
	Failures  map[Stage]Kind  `json:"failures,omitempty"`
	HasAudio  bool            `json:"has_audio"`
	Time      time.Time       `json:"time"`
}

// run accumulates the trace of one pipeline execution.
type run struct {
	op        string
	sessionID string
	start     time.Time
	trace     []State
	timings   Timings
	failures  map[Stage]Kind
}

func newRun(op, sessionID string) *run {
	return &run{
		op:        op,
		sessionID: sessionID,
		start:     time.Now(),
		trace:     []State{StateIdle},
	}
}

func (r *run) enter(s State) {
	r.trace = append(r.trace, s)
}

func (r *run) fail(stage Stage, err error) {
	if r.failures == nil {
		r.failures = make(map[Stage]Kind)
	}
	r.failures[stage] = Classify(err)
}

// finish closes the run, records it and notifies observers.
func (p *Pipeline) finish(r *run, res *Result) *Result {
	r.enter(StateDone)
	r.timings.Total = time.Since(r.start)
	res.Trace = r.trace
	res.Timings = r.timings

	p.stats.Record(r.op, res.Status, r.timings, r.failures)

	attrs := []any{
		"op", r.op,
		"status", res.Status,
		"latency", r.timings.String(),
	}
	if r.sessionID != "" {
		attrs = append(attrs, "session", r.sessionID)
	}
	for stage, kind := range r.failures {
		attrs = append(attrs, string(stage)+"_error", kind)
	}
	if res.Status == StatusSuccess {
		p.logger.Info("run complete", attrs...)
	} else {
		p.logger.Warn("run degraded", attrs...)
	}

	p.mu.RLock()
	observers := p.observers
	p.mu.RUnlock()
	if len(observers) == 0 {
		return res
	}

	ev := Event{
		ID:        uuid.NewString(),
		Operation: r.op,
		SessionID: r.sessionID,
		Status:    res.Status,
		Trace:     r.trace,
		LatencyMs: map[Stage]int64{
			StageTranscribe: r.timings.Transcribe.Milliseconds(),
			StageGenerate:   r.timings.Generate.Milliseconds(),
			StageSynthesize: r.timings.Synthesize.Milliseconds(),
		},
		Failures: r.failures,
		HasAudio: res.AudioURL != "",
		Time:     time.Now(),
	}
	for _, fn := range observers {
		fn(ev)
	}
	return res
}
