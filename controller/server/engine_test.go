package server

import (
	"strconv"
	"strings"
	"testing"

	"saucecnc/controller/config"
)

func newTestEngine(t *testing.T) *Engine {
	e, err := New(config.DefaultMachineConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return e
}

func home(t *testing.T, e *Engine) {
	replies := e.HandleLine(0, "N1 G28")
	if len(replies) != 1 || replies[0] != "ok N1" {
		t.Fatalf("homing replies = %v, want [ok N1]", replies)
	}
}

func TestHomingResetsSequenceAndPosition(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)
	if e.posX != 0 || e.posY != 0 {
		t.Fatalf("position after home = (%v, %v), want (0,0)", e.posX, e.posY)
	}
	if e.expectedNextSeq != 1 {
		t.Fatalf("expectedNextSeq after home = %d, want 1", e.expectedNextSeq)
	}
}

func TestDrawUnitSquare(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)

	lines := []string{
		"N1 M3 S60",
		"N2 G1 X10 Y0 F600",
		"N3 G1 X10 Y10 F600",
		"N4 G1 X0 Y10 F600",
		"N5 G1 X0 Y0 F600",
		"N6 M5",
	}
	for i, line := range lines {
		want := "ok N" + strconv.Itoa(i+1)
		replies := e.HandleLine(0, line)
		if len(replies) != 1 || replies[0] != want {
			t.Fatalf("line %q replies = %v, want [%s]", line, replies, want)
		}
	}

	if e.posX != 0 || e.posY != 0 {
		t.Fatalf("final position = (%v, %v), want (0,0)", e.posX, e.posY)
	}
	if e.flowDuty != 0 {
		t.Fatalf("final flow duty = %d, want 0", e.flowDuty)
	}
	if e.State().String() != "Printing" {
		t.Fatalf("final state = %s, want Printing", e.State())
	}
	if e.q.Count() != 0 {
		t.Fatalf("final queue depth = %d, want 0", e.q.Count())
	}
}

func TestGapDetectionAndRecovery(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)

	if r := e.HandleLine(0, "N1 G1 X5 Y0 F600"); len(r) != 1 || r[0] != "ok N1" {
		t.Fatalf("N1 replies = %v", r)
	}
	if r := e.HandleLine(0, "N3 G1 X5 Y5 F600"); len(r) != 1 || r[0] != "err N3 code=GAP" {
		t.Fatalf("N3 (gap) replies = %v", r)
	}
	if r := e.HandleLine(0, "N2 G1 X5 Y2.5 F600"); len(r) != 1 || r[0] != "ok N2" {
		t.Fatalf("N2 (resend) replies = %v", r)
	}
	if r := e.HandleLine(0, "N3 G1 X5 Y5 F600"); len(r) != 1 || r[0] != "ok N3" {
		t.Fatalf("N3 (retry) replies = %v", r)
	}
	if e.posX != 5 || e.posY != 5 {
		t.Fatalf("final position = (%v, %v), want (5,5)", e.posX, e.posY)
	}
}

func TestDuplicateSuppression(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)

	e.HandleLine(0, "N1 G0 X20 Y20 F3000")
	if e.posX != 20 || e.posY != 20 {
		t.Fatalf("position after N1 = (%v, %v), want (20,20)", e.posX, e.posY)
	}
	r := e.HandleLine(0, "N1 G0 X20 Y20 F3000")
	if len(r) != 1 || r[0] != "ok N1" {
		t.Fatalf("duplicate N1 replies = %v, want [ok N1]", r)
	}
	if e.posX != 20 || e.posY != 20 {
		t.Fatalf("position after duplicate = (%v, %v), want unchanged (20,20)", e.posX, e.posY)
	}
}

func TestSoftLimitViolationEntersError(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)

	r := e.HandleLine(0, "N1 G1 X130 Y0 F600")
	if len(r) != 1 || r[0] != "err N1 code=LIMIT" {
		t.Fatalf("N1 (limit) replies = %v, want [err N1 code=LIMIT]", r)
	}
	if e.State().String() != "Error" {
		t.Fatalf("state after limit violation = %s, want Error", e.State())
	}
	if e.io.Duty() != 0 {
		t.Fatalf("pump duty after limit violation = %d, want 0", e.io.Duty())
	}

	r2 := e.HandleLine(0, "N2 G1 X0 Y0 F600")
	if len(r2) != 1 || r2[0] != "err N2 code=BUSY_STATE" {
		t.Fatalf("N2 after Error replies = %v, want [err N2 code=BUSY_STATE]", r2)
	}
}

func TestHeartbeatTimeoutPauses(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)
	e.HandleLine(0, "N1 M3 S50")
	e.HandleLine(0, "N2 G1 X50 Y50 F600")

	if e.TickHeartbeat(1000) != nil {
		t.Fatalf("heartbeat should not trip before timeout")
	}
	line := e.TickHeartbeat(1000 + int64(e.cfg.HeartbeatTimeMS) + 1)
	if line == nil || *line != "err code=HEARTBEAT" {
		t.Fatalf("TickHeartbeat after timeout = %v, want err code=HEARTBEAT", line)
	}
	if e.State().String() != "Paused" {
		t.Fatalf("state after heartbeat timeout = %s, want Paused", e.State())
	}
	if e.io.Duty() != 0 {
		t.Fatalf("pump duty after heartbeat timeout = %d, want 0", e.io.Duty())
	}
}

func TestReportStatusIncludesLastAck(t *testing.T) {
	e := newTestEngine(t)
	home(t, e)
	e.HandleLine(0, "N1 G1 X5 Y0 F600")
	e.HandleLine(0, "N2 G1 X10 Y0 F600")

	r := e.HandleLine(0, "N0 M408")
	if len(r) != 2 {
		t.Fatalf("M408 replies = %v, want 2 lines", r)
	}
	if !strings.Contains(r[1], "last_ack=2") {
		t.Fatalf("status line = %q, want last_ack=2", r[1])
	}
}

