package ctaphid

import "fmt"

// ErrorCode is a CTAPHID transport error code, sent back to
// the host as the single payload byte of an ERROR response.
type ErrorCode uint8

const (
	ErrNone           ErrorCode = 0x00 // sentinel, never sent
	ErrInvalidCmd     ErrorCode = 0x01
	ErrInvalidPar     ErrorCode = 0x02
	ErrInvalidLen     ErrorCode = 0x03
	ErrInvalidSeq     ErrorCode = 0x04
	ErrMsgTimeout     ErrorCode = 0x05
	ErrChannelBusy    ErrorCode = 0x06
	ErrLockRequired   ErrorCode = 0x0A
	ErrInvalidChannel ErrorCode = 0x0B
	ErrOther          ErrorCode = 0x7F
)

var errorCodeNames = map[ErrorCode]string{
	ErrNone:           "NONE",
	ErrInvalidCmd:     "INVALID_COMMAND",
	ErrInvalidPar:     "INVALID_PARAMETER",
	ErrInvalidLen:     "INVALID_LENGTH",
	ErrInvalidSeq:     "INVALID_SEQUENCE",
	ErrMsgTimeout:     "MSG_TIMEOUT",
	ErrChannelBusy:    "CHANNEL_BUSY",
	ErrLockRequired:   "LOCK_REQUIRED",
	ErrInvalidChannel: "INVALID_CHANNEL",
	ErrOther:          "OTHER",
}

func (e ErrorCode) String() string {
	if name, ok := errorCodeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(e))
}

// Error satisfies the error interface so bare ErrorCode values can be used
// directly as errors.Is targets (e.g. errors.Is(err, ctaphid.ErrChannelBusy)).
func (e ErrorCode) Error() string { return e.String() }

// Error is a transport-level CTAPHID error, carrying the cid it occurred on
// (for emit_error routing) alongside the wire error code.
type Error struct {
	CID  ChannelID
	Code ErrorCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("ctaphid: %s on channel %s", e.Code, e.CID)
}

// Is lets callers write errors.Is(err, ctaphid.ErrChannelBusy)-shaped
// checks against a bare ErrorCode, since ErrorCode implements error itself.
func (e *Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

func transportErr(cid ChannelID, code ErrorCode) *Error {
	return &Error{CID: cid, Code: code}
}
