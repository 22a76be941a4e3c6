package ctaphid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFragmentZeroLengthPayload(t *testing.T) {
	f := NewFragmenter()
	frames := f.Fragment(0x01020304, CmdPing, nil)

	require.Len(t, frames, 1)
	frame := frames[0]
	require.Len(t, frame, FrameLen)
	assert.Equal(t, byte(0x04), frame[0])
	assert.Equal(t, byte(0x03), frame[1])
	assert.Equal(t, byte(0x02), frame[2])
	assert.Equal(t, byte(0x01), frame[3])
	assert.Equal(t, CmdPing.withInitBit(), frame[4])
	assert.Equal(t, byte(0), frame[5])
	assert.Equal(t, byte(0), frame[6])
}

func TestFragmentExactlyOneInitFrame(t *testing.T) {
	f := NewFragmenter()
	payload := make([]byte, InitDataLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	frames := f.Fragment(1, CmdPing, payload)
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0][InitHdrLen:InitHdrLen+InitDataLen])
}

func TestFragmentSpansContinuation(t *testing.T) {
	f := NewFragmenter()
	payload := make([]byte, InitDataLen+ContDataLen+1)
	for i := range payload {
		payload[i] = byte(i)
	}
	frames := f.Fragment(7, CmdMsg, payload)
	require.Len(t, frames, 3)

	assert.Equal(t, CmdMsg.withInitBit(), frames[0][4])
	assert.Equal(t, byte(0), frames[1][4])
	assert.Equal(t, byte(1), frames[2][4])

	var reassembled []byte
	reassembled = append(reassembled, frames[0][InitHdrLen:]...)
	reassembled = append(reassembled, frames[1][ContHdrLen:]...)
	reassembled = append(reassembled, frames[2][ContHdrLen:1+ContHdrLen]...)
	assert.Equal(t, payload, reassembled)
}

// TestFragmentReassembleRoundTrip checks that fragmenting any payload up to
// MaxPayload and feeding the resulting frames back through a Reassembler
// reproduces the original bytes.
func TestFragmentReassembleRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, MaxPayload).Draw(rt, "n")
		payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "payload")
		cmd := rapid.SampledFrom([]Command{CmdPing, CmdMsg, CmdCBOR}).Draw(rt, "cmd")
		cid := ChannelID(rapid.Uint32().Draw(rt, "cid"))
		if cid == ReservedCID || cid == BroadcastCID {
			cid = 0x11223344
		}

		f := NewFragmenter()
		frames := f.Fragment(cid, cmd, payload)

		clock := &fakeClock{}
		table := NewChannelTable(1, clock, DefaultIdleLifetime.Milliseconds())
		require.NoError(rt, table.Add(cid, 0))
		reassembler := NewReassembler(table, clock, DefaultTxnTimeout.Milliseconds())

		var outcome Outcome
		for _, frame := range frames {
			outcome = reassembler.Feed(frame)
		}
		require.Equal(rt, OutcomeComplete, outcome.Kind)

		ch := table.Get(cid)
		require.NotNil(rt, ch)
		assert.Equal(rt, cmd, ch.Cmd)
		assert.Equal(rt, payload, []byte(ch.Payload))
	})
}
