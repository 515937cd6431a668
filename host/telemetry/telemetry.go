// Package telemetry accumulates the controller's 1Hz telemetry frames
// for display, keeping a short history for the host CLI's live
// position/queue readout.
package telemetry

import (
	"fmt"
	"sync"

	"saucecnc/protocol"
)

const historyLimit = 32

// Sink collects telemetry frames delivered by a streamer and exposes
// the latest frame and a bounded recent history.
type Sink struct {
	mu      sync.Mutex
	latest  protocol.Telemetry
	history []protocol.Telemetry
	count   int
}

// NewSink returns an empty telemetry sink.
func NewSink() *Sink {
	return &Sink{}
}

// Observe records a newly received telemetry frame. Intended as a
// streamer.Streamer.OnTelemetry callback.
func (s *Sink) Observe(t protocol.Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = t
	s.count++
	s.history = append(s.history, t)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// Latest returns the most recently observed frame and whether any
// frame has been observed yet.
func (s *Sink) Latest() (protocol.Telemetry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.count > 0
}

// Count returns the number of frames observed.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// History returns a copy of the most recent frames, oldest first.
func (s *Sink) History() []protocol.Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Telemetry, len(s.history))
	copy(out, s.history)
	return out
}

// Format renders a frame as a single status line for terminal
// display, matching the prototype sender's live position readout.
func Format(t protocol.Telemetry) string {
	return fmt.Sprintf("Position: X=%.2f Y=%.2f | Queue: %d | Flow: %d | State: %s",
		t.Pos.X, t.Pos.Y, t.Q, t.Flow, t.State)
}
