package streamer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"saucecnc/protocol"
)

// fakeConn is an in-memory Conn for driving Streamer without a real
// socket. Queued inbound lines are delivered on ReadLine; WriteLine
// records what the streamer sent.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan string
	written []string
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan string, 64)}
}

func (f *fakeConn) ReadLine() (string, error) {
	line, ok := <-f.inbound
	if !ok {
		return "", errConnClosed
	}
	return line, nil
}

func (f *fakeConn) WriteLine(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, line)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeConn) writtenLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	copy(out, f.written)
	return out
}

func (f *fakeConn) deliver(line string) { f.inbound <- line }

type connClosedErr struct{}

func (connClosedErr) Error() string { return "fake connection closed" }

var errConnClosed = connClosedErr{}

func TestStreamAcksAllCommandsWithinWindow(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 2, 200*time.Millisecond, 3)

	lines := []string{"N1 G1 X1 Y0 F600", "N2 G1 X2 Y0 F600", "N3 G1 X3 Y0 F600"}

	go func() {
		deadline := time.After(2 * time.Second)
		acked := 0
		for acked < len(lines) {
			select {
			case <-deadline:
				return
			default:
			}
			sent := conn.writtenLines()
			for _, line := range sent {
				cmd, err := protocol.ParseLine(line)
				if err != nil || cmd.Seq == 0 {
					continue
				}
				if int(cmd.Seq) > acked {
					conn.deliver(protocol.FormatOK(cmd.Seq))
					acked = int(cmd.Seq)
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stream(ctx, lines); err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	stats := s.Stats()
	if stats.TotalAcked != 3 {
		t.Fatalf("TotalAcked = %d, want 3", stats.TotalAcked)
	}
}

func TestStreamRespectsWindowSize(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 1, 5*time.Second, 1)

	lines := []string{"N1 G1 X1 Y0 F600", "N2 G1 X2 Y0 F600"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Stream(ctx, lines)
		close(done)
	}()

	deadline := time.After(1 * time.Second)
	for {
		if len(conn.writtenLines()) >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for first send")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	if got := len(conn.writtenLines()); got != 1 {
		t.Fatalf("sent %d lines before first ack, want 1 (window size)", got)
	}

	conn.deliver("ok N1")
	deadline = time.After(1 * time.Second)
	for {
		if len(conn.writtenLines()) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for second send after ack")
		case <-time.After(time.Millisecond):
		}
	}

	conn.deliver("ok N2")
	cancel()
	<-done
}

func TestStreamRetriesOnAckTimeout(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 4, 30*time.Millisecond, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		conn.deliver("ok N1")
	}()

	if err := s.Stream(ctx, []string{"N1 G1 X1 Y0 F600"}); err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	if s.Stats().TotalRetries == 0 {
		t.Fatalf("expected at least one retry before the late ack")
	}
}

func TestStreamFailsJobWhenRetriesExhausted(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 4, 20*time.Millisecond, 2)

	var gotErr *protocol.Error
	s.OnError = func(e *protocol.Error) { gotErr = e }

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := s.Stream(ctx, []string{"N1 G1 X1 Y0 F600"})
	var failed *StreamFailedError
	if err == nil {
		t.Fatalf("Stream error = nil, want *StreamFailedError")
	}
	if !errors.As(err, &failed) {
		t.Fatalf("Stream error = %v, want *StreamFailedError", err)
	}
	if failed.Seq != 1 {
		t.Fatalf("StreamFailedError.Seq = %d, want 1", failed.Seq)
	}
	if gotErr == nil || gotErr.Seq != 1 {
		t.Fatalf("OnError = %v, want seq 1 reported before failing", gotErr)
	}
	if s.Stats().TotalRetries != 2 {
		t.Fatalf("TotalRetries = %d, want 2 (exhausted budget)", s.Stats().TotalRetries)
	}
}

func TestStreamReportsErrAndDropsFromWindow(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 4, 500*time.Millisecond, 1)

	var gotErr *protocol.Error
	s.OnError = func(e *protocol.Error) { gotErr = e }

	go func() { conn.deliver("err N1 code=LIMIT") }()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := s.Stream(ctx, []string{"N1 G1 X999 Y0 F600"}); err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	if gotErr == nil || gotErr.Code != protocol.ErrLimit {
		t.Fatalf("OnError = %v, want code=LIMIT", gotErr)
	}
}

func TestStreamDeliversTelemetry(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 4, 500*time.Millisecond, 1)

	var got protocol.Telemetry
	received := make(chan struct{})
	s.OnTelemetry = func(t protocol.Telemetry) {
		got = t
		close(received)
	}

	go func() {
		conn.deliver(`telemetry {"pos":{"x":1.5,"y":2.5},"flow":60,"q":0,"state":"Printing"}`)
		conn.deliver("ok N1")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := s.Stream(ctx, []string{"N1 G1 X1 Y0 F600"}); err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatalf("telemetry callback never fired")
	}
	if got.Pos.X != 1.5 || got.Pos.Y != 2.5 {
		t.Fatalf("telemetry = %+v, want pos (1.5, 2.5)", got)
	}
}

func TestResumeDropsAckedLines(t *testing.T) {
	lines := []string{"N1 G1 X1 Y0 F600", "N2 G1 X2 Y0 F600", "N3 G1 X3 Y0 F600"}
	remaining, err := Resume(lines, 2)
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != lines[2] {
		t.Fatalf("Resume(lines, 2) = %v, want only N3 line", remaining)
	}
}

func TestResumeKeepsOutOfBandLines(t *testing.T) {
	lines := []string{"N0 M408", "N1 G1 X1 Y0 F600"}
	remaining, err := Resume(lines, 5)
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != "N0 M408" {
		t.Fatalf("Resume = %v, want only the out-of-band line kept", remaining)
	}
}

func TestHandshakeReturnsLastAck(t *testing.T) {
	conn := newFakeConn()
	s := New(conn, 4, 500*time.Millisecond, 1)

	go func() {
		conn.deliver("status state=Ready q=0 flow=0 sauce=OFF last_ack=7")
	}()

	lastAck, err := s.Handshake()
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}
	if lastAck != 7 {
		t.Fatalf("lastAck = %d, want 7", lastAck)
	}
	sent := conn.writtenLines()
	if len(sent) != 1 || sent[0] != "N0 M408" {
		t.Fatalf("handshake sent = %v, want [N0 M408]", sent)
	}
}
