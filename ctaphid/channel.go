package ctaphid

// Channel is one row of the ChannelTable: the reassembly state for a
// single CID.
type Channel struct {
	CID            ChannelID
	InUse          bool
	LastActivityMS int64
	State          ChannelState

	Cmd          Command
	ExpectedLen  uint16
	ReceivedLen  uint16
	NextSeq      uint8
	Payload      []byte
}

// reset clears a row back to its just-allocated IDLE shape, preserving CID
// and InUse.
func (c *Channel) reset(nowMS int64) {
	c.State = StateIdle
	c.Cmd = 0
	c.ExpectedLen = 0
	c.ReceivedLen = 0
	c.NextSeq = 0
	c.Payload = c.Payload[:0]
	c.LastActivityMS = nowMS
}

// free marks the row unallocated. The payload buffer is released along
// with it.
func (c *Channel) free() {
	*c = Channel{}
}

// beginInit starts a fresh INIT-frame transaction on this row.
func (c *Channel) beginInit(cmd Command, expectedLen uint16, nowMS int64) {
	c.State = StateInProgress
	c.Cmd = cmd
	c.ExpectedLen = expectedLen
	c.ReceivedLen = 0
	c.NextSeq = 0
	if cap(c.Payload) < int(expectedLen) {
		c.Payload = make([]byte, 0, MaxPayload)
	} else {
		c.Payload = c.Payload[:0]
	}
	c.LastActivityMS = nowMS
}

func (c *Channel) appendPayload(data []byte) {
	c.Payload = append(c.Payload, data...)
	c.ReceivedLen = uint16(len(c.Payload))
}

// complete transitions this row to COMPLETE once ReceivedLen reaches
// ExpectedLen.
func (c *Channel) complete() {
	c.State = StateComplete
}
