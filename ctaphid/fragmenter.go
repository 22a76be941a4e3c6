package ctaphid

// Fragmenter turns one (cid, cmd, payload) response into the sequence of
// 64-byte INIT+CONT frames that carry it over the wire.
type Fragmenter struct{}

// NewFragmenter returns a stateless Fragmenter; it exists as a type mainly
// so CommandDispatcher and Engine can hold it as a named collaborator,
// mirroring how Reassembler and ChannelTable are held.
func NewFragmenter() *Fragmenter { return &Fragmenter{} }

// Fragment emits frames for payload, zero-padded to FrameLen each. A zero
// length payload still produces exactly one INIT frame with bcnt=0.
func (f *Fragmenter) Fragment(cid ChannelID, cmd Command, payload []byte) [][]byte {
	var frames [][]byte

	n := len(payload)
	first := n
	if first > InitDataLen {
		first = InitDataLen
	}
	frames = append(frames, f.initFrame(cid, cmd, uint16(n), payload[:first]))
	payload = payload[first:]

	seq := 0
	for len(payload) > 0 {
		chunk := len(payload)
		if chunk > ContDataLen {
			chunk = ContDataLen
		}
		frames = append(frames, f.contFrame(cid, uint8(seq), payload[:chunk]))
		payload = payload[chunk:]
		seq++
	}
	return frames
}

func (f *Fragmenter) initFrame(cid ChannelID, cmd Command, bcnt uint16, data []byte) []byte {
	frame := make([]byte, FrameLen)
	putLE32(frame[0:4], uint32(cid))
	frame[4] = cmd.withInitBit()
	frame[5] = byte(bcnt >> 8)
	frame[6] = byte(bcnt)
	copy(frame[InitHdrLen:], data)
	return frame
}

func (f *Fragmenter) contFrame(cid ChannelID, seq uint8, data []byte) []byte {
	frame := make([]byte, FrameLen)
	putLE32(frame[0:4], uint32(cid))
	frame[4] = seq &^ cmdBit
	copy(frame[ContHdrLen:], data)
	return frame
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
