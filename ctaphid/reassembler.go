package ctaphid

// Outcome is the result of feeding one inbound 64-byte frame to the
// Reassembler.
type Outcome struct {
	// Kind distinguishes the three possible outcomes.
	Kind OutcomeKind
	// CID is set for both Complete and Err.
	CID ChannelID
	// Err is set when Kind == OutcomeErr.
	Err *Error
}

type OutcomeKind uint8

const (
	OutcomeNone OutcomeKind = iota
	OutcomeComplete
	OutcomeErr
)

// Reassembler consumes one inbound 64-byte report at a time and mutates
// the addressed channel's reassembly state in the given ChannelTable.
type Reassembler struct {
	table      *ChannelTable
	clock      Clock
	txnTimeout int64 // milliseconds; must agree with the Scheduler's budget
}

// NewReassembler builds a Reassembler over an existing ChannelTable, using
// txnTimeoutMS as the mid-transaction CONT-frame deadline.
func NewReassembler(table *ChannelTable, clock Clock, txnTimeoutMS int64) *Reassembler {
	return &Reassembler{table: table, clock: clock, txnTimeout: txnTimeoutMS}
}

// Feed implements the feed(frame) reassembly algorithm. frame must be
// exactly FrameLen bytes.
func (r *Reassembler) Feed(frame []byte) Outcome {
	now := r.clock.NowMillis()

	cid := ChannelID(leUint32(frame[0:4]))
	if cid == ReservedCID {
		return errOutcome(cid, ErrInvalidChannel)
	}

	isInit := frame[4]&cmdBit != 0

	if cid != BroadcastCID && !r.table.Exists(cid) {
		return errOutcome(cid, ErrChannelBusy)
	}

	if cid == BroadcastCID {
		if !isInit || Command(frame[4]&^cmdBit) != CmdInit {
			return errOutcome(cid, ErrInvalidChannel)
		}
		if err := r.table.Add(cid, now); err != nil {
			return errOutcome(cid, ErrChannelBusy)
		}
	}

	ch := r.table.Get(cid)
	if ch == nil {
		return errOutcome(cid, ErrInvalidChannel)
	}

	if ch.State == StateComplete {
		return errOutcome(cid, ErrOther)
	}

	if other := r.table.FindInProgress(); other != nil && other.CID != cid {
		return errOutcome(cid, ErrChannelBusy)
	}

	if ch.State == StateInProgress {
		if isInit {
			cmd := Command(frame[4] &^ cmdBit)
			if cmd == CmdInit || cmd == CmdSync {
				r.table.Clear(cid, now)
				ch = r.table.Get(cid)
			}
		} else if now-ch.LastActivityMS > r.txnTimeout {
			r.table.Clear(cid, now)
			return errOutcome(cid, ErrMsgTimeout)
		}
	}

	ch.State = StateInProgress
	_ = r.table.Refresh(cid, now)

	if isInit {
		return r.feedInit(ch, frame, now)
	}
	return r.feedCont(ch, frame, now)
}

func (r *Reassembler) feedInit(ch *Channel, frame []byte, now int64) Outcome {
	cmd := Command(frame[4] &^ cmdBit)
	bcnt := beUint16(frame[5:7])
	if bcnt > MaxPayload {
		return errOutcome(ch.CID, ErrInvalidLen)
	}

	ch.beginInit(cmd, bcnt, now)

	n := int(bcnt)
	if n > InitDataLen {
		n = InitDataLen
	}
	ch.appendPayload(frame[InitHdrLen : InitHdrLen+n])

	if ch.ReceivedLen >= ch.ExpectedLen {
		ch.complete()
		return Outcome{Kind: OutcomeComplete, CID: ch.CID}
	}
	return Outcome{Kind: OutcomeNone, CID: ch.CID}
}

func (r *Reassembler) feedCont(ch *Channel, frame []byte, now int64) Outcome {
	if ch.State != StateInProgress {
		return errOutcome(ch.CID, ErrInvalidSeq)
	}
	seq := frame[4]
	if seq > maxSeq || seq != ch.NextSeq {
		return errOutcome(ch.CID, ErrInvalidSeq)
	}
	if ch.ReceivedLen >= ch.ExpectedLen {
		return errOutcome(ch.CID, ErrInvalidLen)
	}

	remaining := int(ch.ExpectedLen) - int(ch.ReceivedLen)
	n := ContDataLen
	if n > remaining {
		n = remaining
	}
	ch.appendPayload(frame[ContHdrLen : ContHdrLen+n])
	ch.NextSeq++

	if ch.ReceivedLen >= ch.ExpectedLen {
		ch.complete()
		return Outcome{Kind: OutcomeComplete, CID: ch.CID}
	}
	return Outcome{Kind: OutcomeNone, CID: ch.CID}
}

func errOutcome(cid ChannelID, code ErrorCode) Outcome {
	return Outcome{Kind: OutcomeErr, CID: cid, Err: transportErr(cid, code)}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
