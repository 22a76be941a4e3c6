// Package ctaphid implements the transport-layer core of CTAPHID: the
// reassembly of 64-byte USB HID reports into CTAPHID messages, their
// fragmentation back into reports, the channel table that arbitrates
// concurrently open CIDs, and the INIT/PING/WINK/LOCK/SYNC control
// commands. It does not speak APDU, CBOR, or USB itself; those are
// external collaborators supplied by the embedder.
package ctaphid

import "time"

// Wire-fixed sizes and limits, per the CTAPHID framing in the FIDO spec.
const (
	FrameLen    = 64
	InitHdrLen  = 7 // cid(4) cmd(1) bcnth(1) bcntl(1)
	ContHdrLen  = 5 // cid(4) seq(1)
	MaxPayload  = 7609
	InitDataLen = FrameLen - InitHdrLen // 57
	ContDataLen = FrameLen - ContHdrLen // 59

	NonceLen = 8

	cmdBit = 0x80
	maxSeq = 0x7F
)

// ChannelID identifiers reserved by the protocol.
const (
	BroadcastCID ChannelID = 0xFFFFFFFF
	ReservedCID  ChannelID = 0x00000000
)

// Default tunables. All but DefaultProtocolVersion are overridable via
// config.Config.
const (
	DefaultMaxChannels     = 8
	DefaultIdleLifetime    = 4500 * time.Millisecond
	DefaultTxnTimeout      = 600 * time.Millisecond
	DefaultPeriodicTick    = 1 * time.Second
	DefaultProtocolVersion = 2
)

// Device version advertised in the INIT response, in the absence of
// anything more specific from the embedder.
const (
	DefaultDeviceVersionMajor = 1
	DefaultDeviceVersionMinor = 0
	DefaultDeviceVersionBuild = 0
)
