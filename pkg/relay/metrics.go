package relay

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Timings records how long each stage of one run took. A stage that was
// skipped stays zero.
type Timings struct {
	Transcribe time.Duration
	Generate   time.Duration
	Synthesize time.Duration
	Total      time.Duration
}

// String formats the timings for log lines.
func (t Timings) String() string {
	return formatDuration(t.Transcribe) + " STT | " +
		formatDuration(t.Generate) + " LLM | " +
		formatDuration(t.Synthesize) + " TTS | " +
		formatDuration(t.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

const statsHistory = 100

// Stats collects pipeline outcomes across runs. It is goroutine-safe.
type Stats struct {
	mu       sync.Mutex
	runs     map[string]map[Status]uint64 // operation -> status -> count
	failures map[Stage]map[Kind]uint64
	latency  map[Stage]time.Duration
	history  []Timings
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{
		runs:     make(map[string]map[Status]uint64),
		failures: make(map[Stage]map[Kind]uint64),
		latency:  make(map[Stage]time.Duration),
		history:  make([]Timings, 0, statsHistory),
	}
}

// Record adds one finished run.
func (s *Stats) Record(op string, status Status, t Timings, failures map[Stage]Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs[op] == nil {
		s.runs[op] = make(map[Status]uint64)
	}
	s.runs[op][status]++

	for stage, kind := range failures {
		if s.failures[stage] == nil {
			s.failures[stage] = make(map[Kind]uint64)
		}
		s.failures[stage][kind]++
	}

	s.latency[StageTranscribe] += t.Transcribe
	s.latency[StageGenerate] += t.Generate
	s.latency[StageSynthesize] += t.Synthesize

	s.history = append(s.history, t)
	if len(s.history) > statsHistory {
		s.history = s.history[1:]
	}
}

// Runs returns how many runs of op ended with status.
func (s *Stats) Runs(op string, status Status) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[op][status]
}

// Failures returns how many times stage failed with kind.
func (s *Stats) Failures(stage Stage, kind Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[stage][kind]
}

// Average returns mean timings over the most recent runs.
func (s *Stats) Average() Timings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return Timings{}
	}
	var avg Timings
	for _, h := range s.history {
		avg.Transcribe += h.Transcribe
		avg.Generate += h.Generate
		avg.Synthesize += h.Synthesize
		avg.Total += h.Total
	}
	n := time.Duration(len(s.history))
	avg.Transcribe /= n
	avg.Generate /= n
	avg.Synthesize /= n
	avg.Total /= n
	return avg
}

// WritePrometheus writes the collector in the Prometheus text format.
func (s *Stats) WritePrometheus(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("# HELP voice_relay_runs_total Pipeline runs by operation and status\n")
	printf("# TYPE voice_relay_runs_total counter\n")
	for _, op := range sortedKeys(s.runs) {
		for _, status := range sortedKeys(s.runs[op]) {
			printf("voice_relay_runs_total{operation=%q,status=%q} %d\n", op, status, s.runs[op][status])
		}
	}

	printf("\n# HELP voice_relay_stage_failures_total Stage failures by kind\n")
	printf("# TYPE voice_relay_stage_failures_total counter\n")
	for _, stage := range sortedKeys(s.failures) {
		for _, kind := range sortedKeys(s.failures[stage]) {
			printf("voice_relay_stage_failures_total{stage=%q,kind=%q} %d\n", stage, kind, s.failures[stage][kind])
		}
	}

	printf("\n# HELP voice_relay_stage_seconds_total Cumulative time spent in each stage\n")
	printf("# TYPE voice_relay_stage_seconds_total counter\n")
	for _, stage := range []Stage{StageTranscribe, StageGenerate, StageSynthesize} {
		printf("voice_relay_stage_seconds_total{stage=%q} %.3f\n", stage, s.latency[stage].Seconds())
	}
	return err
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
