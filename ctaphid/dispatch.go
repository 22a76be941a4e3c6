package ctaphid

import (
	"context"

	charmlog "github.com/charmbracelet/log"
)

// BackendFunc is the shape of the external APDU/CBOR collaborator.
// An out-param/capacity-and-length callback collapses to an ordinary
// slice return, the idiomatic Go shape for this kind of collaborator.
type BackendFunc func(ctx context.Context, channel uint8, in []byte) (out []byte, err error)

// Backends holds the three external collaborators CommandDispatcher calls
// into: the APDU (CTAP1) backend, the optional CBOR (CTAP2) backend, and
// the user-presence wink signal.
type Backends struct {
	APDU BackendFunc
	CBOR BackendFunc
	Wink func(ctx context.Context, durationMS uint16) error
}

// DeviceVersion is the device firmware version advertised in INIT
// responses.
type DeviceVersion struct {
	Major, Minor, Build uint8
}

// CommandDispatcher routes a COMPLETE message to a control handler or to
// an external backend, then emits the response via Fragmenter.
type CommandDispatcher struct {
	table    *ChannelTable
	frag     *Fragmenter
	rand     Random
	clock    Clock
	caps     Capability
	version  DeviceVersion
	backends Backends

	lockHolder  ChannelID
	lockHeld    bool
	lockExpires int64

	log *charmlog.Logger
}

// NewCommandDispatcher wires a CommandDispatcher over the shared
// ChannelTable and Fragmenter.
func NewCommandDispatcher(table *ChannelTable, frag *Fragmenter, rnd Random, clock Clock, caps Capability, version DeviceVersion, backends Backends) *CommandDispatcher {
	return &CommandDispatcher{
		table:    table,
		frag:     frag,
		rand:     rnd,
		clock:    clock,
		caps:     caps,
		version:  version,
		backends: backends,
		log:      defaultLogger(),
	}
}

// SetLogger replaces the dispatcher's structured logger.
func (d *CommandDispatcher) SetLogger(l *charmlog.Logger) { d.log = l }

// Dispatch handles one COMPLETE message, returning the frames to send back
// (always at least one — a response or an ERROR).
func (d *CommandDispatcher) Dispatch(ctx context.Context, msg Message) [][]byte {
	now := d.clock.NowMillis()
	d.expireLockIfDue(now)

	var payload []byte
	var respCmd Command
	code := ErrNone

	if d.lockHeld && msg.CID != d.lockHolder {
		code = ErrChannelBusy
	} else {
		payload, respCmd, code = d.handle(ctx, msg)
	}

	wasBroadcast := msg.CID == BroadcastCID
	d.table.Clear(msg.CID, now)
	if wasBroadcast {
		d.table.Remove(BroadcastCID)
	}

	if code != ErrNone {
		d.log.Debug("dispatch rejected", "cid", msg.CID, "cmd", msg.Command, "code", code)
	}

	if code != ErrNone {
		return d.frag.Fragment(msg.CID, CmdError, []byte{byte(code)})
	}
	return d.frag.Fragment(msg.CID, respCmd, payload)
}

// handle routes by command, returning either a response payload+command or
// a non-zero error code.
func (d *CommandDispatcher) handle(ctx context.Context, msg Message) ([]byte, Command, ErrorCode) {
	switch msg.Command {
	case CmdInit:
		return d.handleInit(msg)
	case CmdPing:
		return msg.Payload, CmdPing, ErrNone
	case CmdMsg:
		return d.handleMsg(ctx, msg)
	case CmdCBOR:
		return d.handleCBOR(ctx, msg)
	case CmdWink:
		return d.handleWink(ctx, msg)
	case CmdLock:
		return d.handleLock(msg)
	case CmdSync:
		return nil, CmdSync, ErrNone
	default:
		return nil, 0, ErrInvalidCmd
	}
}

func (d *CommandDispatcher) handleInit(msg Message) ([]byte, Command, ErrorCode) {
	if len(msg.Payload) != NonceLen {
		return nil, 0, ErrInvalidPar
	}
	if msg.CID == ReservedCID {
		return nil, 0, ErrInvalidPar
	}

	resp := make([]byte, 0, NonceLen+4+1+3+1)
	resp = append(resp, msg.Payload...)

	assigned := msg.CID
	if msg.CID == BroadcastCID {
		assigned = d.allocateCID()
		now := d.clock.NowMillis()
		if err := d.table.Add(assigned, now); err != nil {
			return nil, 0, ErrChannelBusy
		}
	}
	var cidBytes [4]byte
	putLE32(cidBytes[:], uint32(assigned))
	resp = append(resp, cidBytes[:]...)

	resp = append(resp, DefaultProtocolVersion)
	resp = append(resp, d.version.Major, d.version.Minor, d.version.Build)
	resp = append(resp, byte(d.caps))

	return resp, CmdInit, ErrNone
}

// allocateCID draws a fresh, non-reserved, non-broadcast, not-already-open
// CID.
func (d *CommandDispatcher) allocateCID() ChannelID {
	for {
		cid := ChannelID(d.rand.Uint32())
		if cid == BroadcastCID || cid == ReservedCID {
			continue
		}
		if d.table.Exists(cid) {
			continue
		}
		return cid
	}
}

func (d *CommandDispatcher) handleMsg(ctx context.Context, msg Message) ([]byte, Command, ErrorCode) {
	if len(msg.Payload) < 4 || msg.CID == ReservedCID || msg.CID == BroadcastCID {
		return nil, 0, ErrInvalidPar
	}
	if d.backends.APDU == nil {
		return nil, 0, ErrInvalidCmd
	}
	out, err := d.backends.APDU(ctx, channelHint(msg.CID), msg.Payload)
	if err != nil {
		return nil, 0, ErrInvalidCmd
	}
	return out, CmdMsg, ErrNone
}

func (d *CommandDispatcher) handleCBOR(ctx context.Context, msg Message) ([]byte, Command, ErrorCode) {
	if d.caps&CapCBOR == 0 || d.backends.CBOR == nil {
		return nil, 0, ErrInvalidCmd
	}
	if msg.CID == ReservedCID || msg.CID == BroadcastCID {
		return nil, 0, ErrInvalidPar
	}
	out, err := d.backends.CBOR(ctx, channelHint(msg.CID), msg.Payload)
	if err != nil {
		return nil, 0, ErrInvalidCmd
	}
	return out, CmdCBOR, ErrNone
}

func (d *CommandDispatcher) handleWink(ctx context.Context, msg Message) ([]byte, Command, ErrorCode) {
	if len(msg.Payload) != 0 {
		return nil, 0, ErrInvalidLen
	}
	if d.backends.Wink != nil {
		if err := d.backends.Wink(ctx, 500); err != nil {
			return nil, 0, ErrOther
		}
	}
	return nil, CmdWink, ErrNone
}

func (d *CommandDispatcher) handleLock(msg Message) ([]byte, Command, ErrorCode) {
	if len(msg.Payload) != 1 {
		return nil, 0, ErrInvalidLen
	}
	seconds := msg.Payload[0]
	if seconds > 10 {
		return nil, 0, ErrInvalidPar
	}
	if seconds == 0 {
		d.log.Debug("lock released", "cid", msg.CID)
		d.lockHeld = false
	} else {
		d.log.Debug("lock acquired", "cid", msg.CID, "seconds", seconds)
		d.lockHeld = true
		d.lockHolder = msg.CID
		d.lockExpires = d.clock.NowMillis() + int64(seconds)*1000
	}
	return nil, CmdLock, ErrNone
}

func (d *CommandDispatcher) expireLockIfDue(nowMS int64) {
	if d.lockHeld && nowMS >= d.lockExpires {
		d.log.Debug("lock expired", "cid", d.lockHolder)
		d.lockHeld = false
	}
}

// channelHint narrows a ChannelID to the one-byte channel hint the APDU
// backend contract expects; collisions are harmless since the
// backend is stateless per call and the full CID already gated dispatch.
func channelHint(cid ChannelID) uint8 {
	return uint8(cid)
}
