// Package apdu provides a non-cryptographic stand-in CTAP1/U2F backend: it
// does not speak to a real authenticator, it only gives CommandDispatcher's
// CmdMsg path something real to call so the engine can be exercised end to
// end. It treats an opaque MSG payload as a raw U2F/ISO 7816-4 APDU and
// hands a status-word-terminated response straight back.
package apdu

import (
	"context"
	"errors"
)

const (
	insVersion = 0x03
	swSuccess  = 0x9000
	swInsNotSupported = 0x6D00
)

// ErrNoAPDU is returned when the payload is too short to even hold an APDU
// header.
var ErrNoAPDU = errors.New("apdu: payload shorter than a command header")

// Backend is a minimal stand-in U2F authenticator: it understands only the
// U2F_VERSION instruction and answers every other instruction with an empty
// body and the INS-not-supported status word (0x6D00), enough to prove the
// transport and dispatch plumbing work
// without any real cryptographic device behind it.
type Backend struct {
	Version string
}

// NewBackend returns a Backend advertising the given U2F version string
// (e.g. "U2F_V2").
func NewBackend(version string) *Backend {
	if version == "" {
		version = "U2F_V2"
	}
	return &Backend{Version: version}
}

// Handle implements ctaphid.BackendFunc: it interprets in as a raw APDU
// (CLA INS P1 P2 [Lc data] [Le]) and returns a response with a two-byte
// status word trailer.
func (b *Backend) Handle(ctx context.Context, channel uint8, in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, ErrNoAPDU
	}
	ins := in[1]

	var body []byte
	sw := uint16(swSuccess)

	switch ins {
	case insVersion:
		body = []byte(b.Version)
	default:
		sw = swInsNotSupported
	}

	out := make([]byte, 0, len(body)+2)
	out = append(out, body...)
	out = append(out, byte(sw>>8), byte(sw))
	return out, nil
}
