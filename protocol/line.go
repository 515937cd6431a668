package protocol

import "strconv"

// Op is one of the SSG operation codes.
type Op string

const (
	OpRapid         Op = "G0"
	OpDraw          Op = "G1"
	OpHome          Op = "G28"
	OpFlowOn        Op = "M3"
	OpFlowOff       Op = "M5"
	OpReportPos     Op = "M114"
	OpReportStatus  Op = "M408"
)

// Command is a single parsed SSG line: a sequence number, an operation,
// and whichever of the X/Y/F/S parameters were present.
//
// Seq is 0 for out-of-band commands (spec: N0 is reserved and skips
// sequence validation). HasX/HasY/HasF/HasS record presence separately
// from value, since e.g. "G1" with no coordinates is a legal no-op move.
type Command struct {
	Seq uint64
	Op  Op

	HasX bool
	X    float64
	HasY bool
	Y    float64
	HasF bool
	F    float64
	HasS bool
	S    int
}

// ParseLine parses one line of the SSG grammar:
//
//	line := [seq SP] op (SP param)*
//	seq  := "N" digit+
//	op   := "G0" | "G1" | "G28" | "M3" | "M5" | "M114" | "M408"
//	param := ("X"|"Y"|"F") number | "S" int
//
// Returns a *protocol.Error with code PARSE if the line is malformed.
func ParseLine(line string) (*Command, error) {
	i, n := 0, len(line)

	for i < n && line[i] == ' ' {
		i++
	}
	if i >= n {
		return nil, &Error{Code: ErrParse, Msg: "empty line"}
	}

	cmd := &Command{}

	if line[i] == 'N' {
		i++
		start := i
		for i < n && isDigit(line[i]) {
			i++
		}
		if i == start {
			return nil, &Error{Code: ErrParse, Msg: "malformed sequence number"}
		}
		seq, err := strconv.ParseUint(line[start:i], 10, 64)
		if err != nil {
			return nil, &Error{Code: ErrParse, Msg: "sequence number out of range"}
		}
		cmd.Seq = seq
		for i < n && line[i] == ' ' {
			i++
		}
	}

	opStart := i
	for i < n && line[i] != ' ' {
		i++
	}
	if i == opStart {
		return nil, &Error{Code: ErrParse, Msg: "missing op"}
	}
	op := Op(line[opStart:i])
	if !validOp(op) {
		return nil, &Error{Code: ErrParse, Seq: cmd.Seq, Msg: "unknown op " + string(op)}
	}
	cmd.Op = op

	for i < n {
		for i < n && line[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}

		letter := line[i]
		i++
		valStart := i
		for i < n && line[i] != ' ' {
			i++
		}
		raw := line[valStart:i]

		switch letter {
		case 'X':
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &Error{Code: ErrParse, Seq: cmd.Seq, Msg: "bad X value"}
			}
			cmd.HasX, cmd.X = true, v
		case 'Y':
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &Error{Code: ErrParse, Seq: cmd.Seq, Msg: "bad Y value"}
			}
			cmd.HasY, cmd.Y = true, v
		case 'F':
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &Error{Code: ErrParse, Seq: cmd.Seq, Msg: "bad F value"}
			}
			cmd.HasF, cmd.F = true, v
		case 'S':
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, &Error{Code: ErrParse, Seq: cmd.Seq, Msg: "bad S value"}
			}
			cmd.HasS, cmd.S = true, v
		default:
			return nil, &Error{Code: ErrParse, Seq: cmd.Seq, Msg: "unknown param " + string(letter)}
		}
	}

	return cmd, nil
}

func validOp(op Op) bool {
	switch op {
	case OpRapid, OpDraw, OpHome, OpFlowOn, OpFlowOff, OpReportPos, OpReportStatus:
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// FormatLine renders a command back to its wire form, used by the
// streamer when resending and by the compiler when emitting a toolpath.
// Numbers are formatted with exactly two decimal places, so identical
// input always yields byte-identical output; values with more than two
// decimals are rounded and do not round-trip exactly.
func FormatLine(cmd Command) string {
	s := "N" + strconv.FormatUint(cmd.Seq, 10) + " " + string(cmd.Op)
	if cmd.HasX {
		s += " X" + formatNumber(cmd.X)
	}
	if cmd.HasY {
		s += " Y" + formatNumber(cmd.Y)
	}
	if cmd.HasF {
		s += " F" + formatNumber(cmd.F)
	}
	if cmd.HasS {
		s += " S" + strconv.Itoa(cmd.S)
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
