package server

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// handleMetrics serves the Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	var b bytes.Buffer
	if err := s.pipeline.Stats().WritePrometheus(&b); err != nil {
		return err
	}
	writeGauges(&b, s)
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
	return c.Send(b.Bytes())
}

// writeGauges appends point-in-time gauges after the pipeline counters.
func writeGauges(b *bytes.Buffer, s *Server) {
	fmt.Fprintf(b, "\n# HELP voice_relay_sessions Sessions holding at least one message\n")
	fmt.Fprintf(b, "# TYPE voice_relay_sessions gauge\n")
	fmt.Fprintf(b, "voice_relay_sessions %d\n", len(s.pipeline.Sessions()))

	fmt.Fprintf(b, "\n# HELP voice_relay_audio_clips Synthesized clips held in memory\n")
	fmt.Fprintf(b, "# TYPE voice_relay_audio_clips gauge\n")
	fmt.Fprintf(b, "voice_relay_audio_clips %d\n", s.clips.Len())

	if s.hub == nil {
		return
	}
	st := s.hub.Stats()
	fmt.Fprintf(b, "\n# HELP voice_relay_event_clients Connected event stream clients\n")
	fmt.Fprintf(b, "# TYPE voice_relay_event_clients gauge\n")
	fmt.Fprintf(b, "voice_relay_event_clients %d\n", st.Clients)
	fmt.Fprintf(b, "\n# HELP voice_relay_events_sent_total Events delivered to clients\n")
	fmt.Fprintf(b, "# TYPE voice_relay_events_sent_total counter\n")
	fmt.Fprintf(b, "voice_relay_events_sent_total %d\n", st.Sent)
	fmt.Fprintf(b, "\n# HELP voice_relay_events_dropped_total Events dropped for slow clients\n")
	fmt.Fprintf(b, "# TYPE voice_relay_events_dropped_total counter\n")
	fmt.Fprintf(b, "voice_relay_events_dropped_total %d\n", st.Dropped)
}
