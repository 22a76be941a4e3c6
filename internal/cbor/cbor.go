// Package cbor provides a non-cryptographic stand-in CTAP2 backend for the
// CmdCBOR path, grounded the same way internal/apdu is: a real
// authenticatorMakeCredential/GetAssertion implementation is out of scope,
// but CommandDispatcher's CBOR branch needs a live BackendFunc to exercise
// the capability-gated CBOR routing path.
package cbor

import (
	"context"
	"errors"
)

// ErrEmptyRequest is returned when the CBOR payload has no command byte.
var ErrEmptyRequest = errors.New("cbor: empty CTAP2 request")

const (
	statusOK          = 0x00
	cmdGetInfo        = 0x04
	statusInvalidCmd  = 0x01
)

// Backend is a minimal stand-in CTAP2 authenticator: it answers
// authenticatorGetInfo with a fixed, empty-ish info map and rejects every
// other command, enough to prove the CBOR capability path end to end.
type Backend struct {
	infoMap []byte // pre-encoded CBOR map, opaque to this package
}

// NewBackend wraps a pre-encoded authenticatorGetInfo response map. Callers
// own the CBOR encoding; this package only prefixes the CTAP2 status byte.
func NewBackend(infoMap []byte) *Backend {
	return &Backend{infoMap: infoMap}
}

// Handle implements ctaphid.BackendFunc: the first byte of in is the CTAP2
// command byte, the rest (if any) is the CBOR-encoded request map.
func (b *Backend) Handle(ctx context.Context, channel uint8, in []byte) ([]byte, error) {
	if len(in) == 0 {
		return nil, ErrEmptyRequest
	}

	switch in[0] {
	case cmdGetInfo:
		out := make([]byte, 0, len(b.infoMap)+1)
		out = append(out, statusOK)
		out = append(out, b.infoMap...)
		return out, nil
	default:
		return []byte{statusInvalidCmd}, nil
	}
}
