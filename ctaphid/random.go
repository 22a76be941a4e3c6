package ctaphid

import (
	"crypto/rand"
	"encoding/binary"
)

// Random is the CID-allocation leaf collaborator. It need not be
// cryptographically strong, but CryptoRandom is offered
// anyway since it is nearly free and avoids any debate about it later.
type Random interface {
	Uint32() uint32
}

// CryptoRandom draws from crypto/rand. It is the default used by Engine.
type CryptoRandom struct{}

func (CryptoRandom) Uint32() uint32 {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}
