package ctaphid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBackends() Backends {
	return Backends{
		APDU: func(ctx context.Context, channel uint8, in []byte) ([]byte, error) { return []byte{0x90, 0x00}, nil },
		Wink: func(ctx context.Context, durationMS uint16) error { return nil },
	}
}

func TestNewRejectsNilTransport(t *testing.T) {
	_, err := New(DefaultOptions(), nil, validBackends())
	require.Error(t, err)
}

func TestNewRejectsMissingAPDUBackend(t *testing.T) {
	backends := validBackends()
	backends.APDU = nil
	_, err := New(DefaultOptions(), newFakeTransport(), backends)
	require.Error(t, err)
}

func TestNewRejectsMissingWinkBackend(t *testing.T) {
	backends := validBackends()
	backends.Wink = nil
	_, err := New(DefaultOptions(), newFakeTransport(), backends)
	require.Error(t, err)
}

func TestNewRejectsCBORCapabilityWithoutBackend(t *testing.T) {
	opts := DefaultOptions()
	opts.Capability |= CapCBOR
	_, err := New(opts, newFakeTransport(), validBackends())
	require.Error(t, err)
}

func TestNewAcceptsCBORCapabilityWithBackend(t *testing.T) {
	opts := DefaultOptions()
	opts.Capability |= CapCBOR
	backends := validBackends()
	backends.CBOR = func(ctx context.Context, channel uint8, in []byte) ([]byte, error) { return nil, nil }
	engine, err := New(opts, newFakeTransport(), backends)
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewRejectsNonPositiveMaxChannels(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxChannels = 0
	_, err := New(opts, newFakeTransport(), validBackends())
	require.Error(t, err)
}

func TestNewDefaultsClockRandomAndLoggerWhenOmitted(t *testing.T) {
	opts := DefaultOptions()
	engine, err := New(opts, newFakeTransport(), validBackends())
	require.NoError(t, err)
	require.NotNil(t, engine.table)
	require.NotNil(t, engine.reassembly)
	require.NotNil(t, engine.dispatcher)
	require.NotNil(t, engine.scheduler)
	assert.IsType(t, &SystemClock{}, engine.dispatcher.clock)
	assert.IsType(t, CryptoRandom{}, engine.dispatcher.rand)
	assert.NotNil(t, engine.dispatcher.log)
}

func TestEngineEndToEndPingRoundTrip(t *testing.T) {
	clock := &fakeClock{}
	rnd := &fakeRandom{values: []uint32{0x12345678}}
	opts := DefaultOptions()
	opts.Clock = clock
	opts.Random = rnd

	transport := newFakeTransport()
	engine, err := New(opts, transport, validBackends())
	require.NoError(t, err)
	require.NoError(t, engine.Configure())

	transport.push(initFrame(BroadcastCID, CmdInit, NonceLen, make([]byte, NonceLen)))
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Len(t, transport.out, 1)
	initResp := transport.out[0]
	assert.Equal(t, CmdInit.withInitBit(), initResp[4])

	var assignedCID [4]byte
	putLE32(assignedCID[:], 0x12345678)
	assert.Equal(t, assignedCID[:], initResp[InitHdrLen+NonceLen:InitHdrLen+NonceLen+4])

	transport.out = nil
	transport.push(initFrame(0x12345678, CmdPing, 2, []byte{0xAA, 0xBB}))
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Len(t, transport.out, 1)
	pingResp := transport.out[0]
	assert.Equal(t, CmdPing.withInitBit(), pingResp[4])
	assert.Equal(t, []byte{0xAA, 0xBB}, pingResp[InitHdrLen:InitHdrLen+2])
}

func TestEnginePeriodicTickDelegatesToScheduler(t *testing.T) {
	clock := &fakeClock{}
	opts := DefaultOptions()
	opts.Clock = clock
	opts.Random = &fakeRandom{values: []uint32{0x12345678}}
	opts.IdleLifetimeMS = 100

	transport := newFakeTransport()
	engine, err := New(opts, transport, validBackends())
	require.NoError(t, err)

	transport.push(initFrame(BroadcastCID, CmdInit, NonceLen, make([]byte, NonceLen)))
	require.NoError(t, engine.RunOnce(context.Background()))

	clock.Advance(101)
	engine.PeriodicTick()

	assert.Nil(t, engine.table.FindInProgress())
	assert.Nil(t, engine.table.FindComplete())
	assert.False(t, engine.table.Exists(0x12345678))
}
