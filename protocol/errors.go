// Package protocol implements the SSG (Sauce Simple G-code) wire format:
// parsing of command lines, formatting of replies, and the small closed
// set of error codes exchanged between host and controller.
package protocol

// ErrorCode is the closed set of `code=` tokens the controller may report,
// per the protocol's error code set.
type ErrorCode string

const (
	ErrParse      ErrorCode = "PARSE"
	ErrSeq        ErrorCode = "SEQ"
	ErrGap        ErrorCode = "GAP"
	ErrNotHomed   ErrorCode = "NOT_HOMED"
	ErrLimit      ErrorCode = "LIMIT"
	ErrEndstop    ErrorCode = "ENDSTOP"
	ErrHomingFail ErrorCode = "HOMING_FAIL"
	ErrBusyState  ErrorCode = "BUSY_STATE"
	ErrHeartbeat  ErrorCode = "HEARTBEAT"
)

// Error is a protocol-level fault carrying the wire error code alongside
// the sequence number it applies to, if any. Errors are values: every
// reply the controller emits is one of these, never a panic or a
// sentinel-only error.
type Error struct {
	Code ErrorCode
	Seq  uint64 // 0 when the error is asynchronous (no associated command)
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return string(e.Code) + ": " + e.Msg
	}
	return string(e.Code)
}

// NewError builds a protocol error for a specific command sequence.
func NewError(code ErrorCode, seq uint64) *Error {
	return &Error{Code: code, Seq: seq}
}

// NewAsyncError builds a protocol error with no associated sequence
// number, used for asynchronous faults (endstop hit, heartbeat timeout).
func NewAsyncError(code ErrorCode) *Error {
	return &Error{Code: code}
}
