package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ReplyKind distinguishes the six reply shapes in the grammar.
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyErr
	ReplyBusy
	ReplyTelemetry
	ReplyPos
	ReplyStatus
)

// Telemetry is the unsolicited `telemetry {...}` payload, emitted at
// the 1 Hz cadence spec §4.1 requires.
type Telemetry struct {
	Pos   struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"pos"`
	Flow  int    `json:"flow"`
	Q     int    `json:"q"`
	State string `json:"state"`
}

// Reply is a decoded controller->host reply line.
type Reply struct {
	Kind ReplyKind

	Seq     uint64
	HasSeq  bool
	Code    ErrorCode
	QueueN  int
	State   string
	Flow    int
	SauceOn bool
	X, Y    float64
	LastAck uint64

	Telemetry Telemetry
}

// FormatOK renders "ok N<seq>".
func FormatOK(seq uint64) string {
	return "ok N" + strconv.FormatUint(seq, 10)
}

// FormatErr renders "err N<seq> code=<kind>" or, for asynchronous
// faults with no associated sequence, "err code=<kind>".
func FormatErr(seq uint64, hasSeq bool, code ErrorCode) string {
	if hasSeq {
		return "err N" + strconv.FormatUint(seq, 10) + " code=" + string(code)
	}
	return "err code=" + string(code)
}

// FormatBusy renders "busy q=<depth> state=<name>".
func FormatBusy(depth int, state string) string {
	return "busy q=" + strconv.Itoa(depth) + " state=" + state
}

// FormatTelemetry renders "telemetry {json}".
func FormatTelemetry(t Telemetry) string {
	b, _ := json.Marshal(t)
	return "telemetry " + string(b)
}

// FormatPos renders "pos X:<x> Y:<y>".
func FormatPos(x, y float64) string {
	return fmt.Sprintf("pos X:%.2f Y:%.2f", x, y)
}

// FormatStatus renders "status state=<name> q=<depth> flow=<duty>
// sauce=ON|OFF last_ack=<seq>". last_ack is the SPEC_FULL resume
// extension (see DESIGN.md Open Questions).
func FormatStatus(state string, q, flow int, sauceOn bool, lastAck uint64) string {
	onoff := "OFF"
	if sauceOn {
		onoff = "ON"
	}
	return fmt.Sprintf("status state=%s q=%d flow=%d sauce=%s last_ack=%d",
		state, q, flow, onoff, lastAck)
}

// ParseReply parses any of the six reply shapes emitted by the
// controller, used by the host-side streamer and telemetry sink.
func ParseReply(line string) (*Reply, error) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "ok "):
		return parseOK(line)
	case strings.HasPrefix(line, "err"):
		return parseErr(line)
	case strings.HasPrefix(line, "busy "):
		return parseBusy(line)
	case strings.HasPrefix(line, "telemetry "):
		return parseTelemetry(line)
	case strings.HasPrefix(line, "status "):
		return parseStatus(line)
	case strings.HasPrefix(line, "pos "):
		return parsePos(line)
	}
	return nil, fmt.Errorf("unrecognized reply: %q", line)
}

func parseOK(line string) (*Reply, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || !strings.HasPrefix(fields[1], "N") {
		return nil, fmt.Errorf("malformed ok reply: %q", line)
	}
	seq, err := strconv.ParseUint(fields[1][1:], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed ok sequence: %q", line)
	}
	return &Reply{Kind: ReplyOK, Seq: seq, HasSeq: true}, nil
}

func parseErr(line string) (*Reply, error) {
	fields := strings.Fields(line)
	r := &Reply{Kind: ReplyErr}
	for _, f := range fields[1:] {
		switch {
		case strings.HasPrefix(f, "N"):
			seq, err := strconv.ParseUint(f[1:], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed err sequence: %q", line)
			}
			r.Seq, r.HasSeq = seq, true
		case strings.HasPrefix(f, "code="):
			r.Code = ErrorCode(strings.TrimPrefix(f, "code="))
		}
	}
	if r.Code == "" {
		return nil, fmt.Errorf("err reply missing code: %q", line)
	}
	return r, nil
}

func parseBusy(line string) (*Reply, error) {
	fields := strings.Fields(line)
	r := &Reply{Kind: ReplyBusy}
	for _, f := range fields[1:] {
		switch {
		case strings.HasPrefix(f, "q="):
			n, err := strconv.Atoi(strings.TrimPrefix(f, "q="))
			if err != nil {
				return nil, fmt.Errorf("malformed busy queue depth: %q", line)
			}
			r.QueueN = n
		case strings.HasPrefix(f, "state="):
			r.State = strings.TrimPrefix(f, "state=")
		}
	}
	return r, nil
}

func parseTelemetry(line string) (*Reply, error) {
	jsonPart := strings.TrimPrefix(line, "telemetry ")
	var t Telemetry
	if err := json.Unmarshal([]byte(jsonPart), &t); err != nil {
		return nil, fmt.Errorf("malformed telemetry json: %w", err)
	}
	return &Reply{Kind: ReplyTelemetry, Telemetry: t}, nil
}

func parseStatus(line string) (*Reply, error) {
	fields := strings.Fields(line)
	r := &Reply{Kind: ReplyStatus}
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "state":
			r.State = kv[1]
		case "q":
			n, err := strconv.Atoi(kv[1])
			if err == nil {
				r.QueueN = n
			}
		case "flow":
			n, err := strconv.Atoi(kv[1])
			if err == nil {
				r.Flow = n
			}
		case "sauce":
			r.SauceOn = kv[1] == "ON"
		case "last_ack":
			n, err := strconv.ParseUint(kv[1], 10, 64)
			if err == nil {
				r.LastAck = n
			}
		}
	}
	return r, nil
}

func parsePos(line string) (*Reply, error) {
	fields := strings.Fields(line)
	r := &Reply{Kind: ReplyPos}
	for _, f := range fields[1:] {
		switch {
		case strings.HasPrefix(f, "X:"):
			v, err := strconv.ParseFloat(strings.TrimPrefix(f, "X:"), 64)
			if err != nil {
				return nil, fmt.Errorf("malformed pos X: %q", line)
			}
			r.X = v
		case strings.HasPrefix(f, "Y:"):
			v, err := strconv.ParseFloat(strings.TrimPrefix(f, "Y:"), 64)
			if err != nil {
				return nil, fmt.Errorf("malformed pos Y: %q", line)
			}
			r.Y = v
		}
	}
	return r, nil
}
