// Package streamer implements the host side of the sliding-window
// SSG transport: send up to W commands ahead of the last
// acknowledgement, retry on ack timeout, resume after disconnect from
// the controller's last_ack, and surface telemetry/progress/error
// events to the caller.
package streamer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"saucecnc/protocol"
)

// Conn is the minimal duplex line transport the streamer needs.
// host/transportws and host/transportserial both implement it.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// StreamFailedError is returned by Stream when an in-flight command
// exhausts its retry budget without being acknowledged. The stream
// stops immediately; the controller is left in whatever state its
// last ack indicated.
type StreamFailedError struct {
	Seq uint64
}

func (e *StreamFailedError) Error() string {
	return fmt.Sprintf("streamer: STREAM_FAIL: N%d exhausted retries without ack", e.Seq)
}

// Progress is emitted as commands are acknowledged.
type Progress struct {
	RunID    uuid.UUID
	Sent     int
	Acked    int
	Total    int
	Fraction float64
}

type inFlightCmd struct {
	Seq     uint64
	Line    string
	SentAt  time.Time
	Retries int
}

// Streamer drives one controller connection's command window.
type Streamer struct {
	conn       Conn
	window     int
	ackTimeout time.Duration
	maxRetries int

	mu           sync.Mutex
	inFlight     map[uint64]*inFlightCmd
	lastAckedSeq uint64

	totalSent    int
	totalAcked   int
	totalRetries int

	OnTelemetry func(protocol.Telemetry)
	OnError     func(*protocol.Error)
	OnProgress  func(Progress)
}

// New builds a Streamer with the given window size, per-command ack
// timeout, and retry budget, matching the controller's own
// Window/AckTimeoutMS/MaxRetries configuration.
func New(conn Conn, window int, ackTimeout time.Duration, maxRetries int) *Streamer {
	return &Streamer{
		conn:       conn,
		window:     window,
		ackTimeout: ackTimeout,
		maxRetries: maxRetries,
		inFlight:   make(map[uint64]*inFlightCmd),
	}
}

// SendOutOfBand sends cmd with sequence 0, bypassing the window and
// the controller's sequence tracking (spec: N0 is reserved for this).
func (s *Streamer) SendOutOfBand(cmd protocol.Command) error {
	cmd.Seq = 0
	return s.conn.WriteLine(protocol.FormatLine(cmd))
}

// Handshake sends the N0 M408 connect probe and returns the
// controller's last_ack, used to resume a prior run after a
// disconnect. The ok ack and any telemetry frames that arrive before
// the status reply are skipped.
func (s *Streamer) Handshake() (uint64, error) {
	if err := s.SendOutOfBand(protocol.Command{Op: protocol.OpReportStatus}); err != nil {
		return 0, fmt.Errorf("streamer: handshake write: %w", err)
	}
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return 0, fmt.Errorf("streamer: handshake read: %w", err)
		}
		reply, err := protocol.ParseReply(line)
		if err != nil {
			return 0, fmt.Errorf("streamer: handshake parse: %w", err)
		}
		switch reply.Kind {
		case protocol.ReplyStatus:
			return reply.LastAck, nil
		case protocol.ReplyOK, protocol.ReplyTelemetry:
			continue
		}
		return 0, fmt.Errorf("streamer: handshake expected status, got %q", line)
	}
}

// Resume drops every line whose sequence is at or below lastAck,
// returning the remainder to send. Out-of-band (N0) lines are never
// dropped since they carry no sequence state.
func Resume(lines []string, lastAck uint64) ([]string, error) {
	var remaining []string
	for _, line := range lines {
		cmd, err := protocol.ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("streamer: resume: %w", err)
		}
		if cmd.Seq != 0 && cmd.Seq <= lastAck {
			continue
		}
		remaining = append(remaining, line)
	}
	return remaining, nil
}

// Stream sends lines to the controller under the sliding window,
// retrying timed-out commands and reporting progress, until every
// line has been sent and acknowledged, an unrecoverable error occurs,
// or ctx is canceled.
func (s *Streamer) Stream(ctx context.Context, lines []string) error {
	runID := uuid.New()
	total := len(lines)
	pending := make([]string, len(lines))
	copy(pending, lines)

	responses := make(chan string)
	readErrs := make(chan error, 1)
	go func() {
		for {
			line, err := s.conn.ReadLine()
			if err != nil {
				readErrs <- err
				return
			}
			responses <- line
		}
	}()

	checkInterval := s.ackTimeout / 4
	if checkInterval < 20*time.Millisecond {
		checkInterval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for len(pending) > 0 || s.inFlightCount() > 0 {
		for s.inFlightCount() < s.window && len(pending) > 0 {
			line := pending[0]
			pending = pending[1:]
			if err := s.send(line); err != nil {
				return fmt.Errorf("streamer: send: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-responses:
			s.handleResponse(line)
			s.reportProgress(runID, total)
		case <-ticker.C:
			failed, err := s.retryTimedOut()
			if err != nil {
				return fmt.Errorf("streamer: retry: %w", err)
			}
			if failed != nil {
				return failed
			}
		case err := <-readErrs:
			return fmt.Errorf("streamer: connection closed: %w", err)
		}
	}

	return nil
}

func (s *Streamer) inFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Streamer) send(line string) error {
	cmd, err := protocol.ParseLine(line)
	if err != nil {
		return err
	}
	if err := s.conn.WriteLine(line); err != nil {
		return err
	}

	s.mu.Lock()
	s.inFlight[cmd.Seq] = &inFlightCmd{Seq: cmd.Seq, Line: line, SentAt: time.Now()}
	s.totalSent++
	s.mu.Unlock()
	return nil
}

func (s *Streamer) handleResponse(line string) {
	reply, err := protocol.ParseReply(line)
	if err != nil {
		log.Warn().Err(err).Str("line", line).Msg("streamer: unparseable reply")
		return
	}

	switch reply.Kind {
	case protocol.ReplyOK:
		s.ack(reply.Seq)
	case protocol.ReplyErr:
		s.mu.Lock()
		if reply.HasSeq {
			delete(s.inFlight, reply.Seq)
		}
		s.mu.Unlock()
		if s.OnError != nil {
			s.OnError(&protocol.Error{Code: reply.Code, Seq: reply.Seq, Msg: "controller error"})
		}
	case protocol.ReplyTelemetry:
		if s.OnTelemetry != nil {
			s.OnTelemetry(reply.Telemetry)
		}
	case protocol.ReplyBusy:
		// Window is already self-limiting; nothing to do but wait.
	}
}

func (s *Streamer) ack(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[seq]; ok {
		delete(s.inFlight, seq)
		s.totalAcked++
		if seq > s.lastAckedSeq {
			s.lastAckedSeq = seq
		}
	}
}

// retryTimedOut resends any in-flight command past its ack timeout, up
// to its retry budget. If a command exhausts its budget, the job is
// marked failed and returned as a *StreamFailedError; the caller stops
// the stream rather than continuing to drain the rest of the window.
func (s *Streamer) retryTimedOut() (*StreamFailedError, error) {
	now := time.Now()

	s.mu.Lock()
	var toRetry, toDrop []*inFlightCmd
	for _, cmd := range s.inFlight {
		if now.Sub(cmd.SentAt) <= s.ackTimeout {
			continue
		}
		if cmd.Retries < s.maxRetries {
			cmd.Retries++
			cmd.SentAt = now
			toRetry = append(toRetry, cmd)
		} else {
			toDrop = append(toDrop, cmd)
		}
	}
	for _, cmd := range toDrop {
		delete(s.inFlight, cmd.Seq)
	}
	s.totalRetries += len(toRetry)
	s.mu.Unlock()

	for _, cmd := range toDrop {
		if s.OnError != nil {
			s.OnError(&protocol.Error{Seq: cmd.Seq, Msg: "max retries exceeded"})
		}
	}
	if len(toDrop) > 0 {
		return &StreamFailedError{Seq: toDrop[0].Seq}, nil
	}

	for _, cmd := range toRetry {
		if err := s.conn.WriteLine(cmd.Line); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Streamer) reportProgress(runID uuid.UUID, total int) {
	if s.OnProgress == nil {
		return
	}
	s.mu.Lock()
	sent, acked := s.totalSent, s.totalAcked
	s.mu.Unlock()

	fraction := 0.0
	if total > 0 {
		fraction = float64(acked) / float64(total)
	}
	s.OnProgress(Progress{RunID: runID, Sent: sent, Acked: acked, Total: total, Fraction: fraction})
}

// Stats summarizes one Stream run, matching the prototype sender's
// end-of-run report.
type Stats struct {
	TotalSent    int
	TotalAcked   int
	TotalRetries int
}

// Stats returns the running totals for the current streamer.
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TotalSent: s.totalSent, TotalAcked: s.totalAcked, TotalRetries: s.totalRetries}
}
