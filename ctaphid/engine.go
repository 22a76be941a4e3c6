package ctaphid

import (
	"context"
	"fmt"

	charmlog "github.com/charmbracelet/log"
)

// Options configures an Engine at construction time.
type Options struct {
	MaxChannels    int
	IdleLifetimeMS int64
	TxnTimeoutMS   int64
	Capability     Capability
	DeviceVersion  DeviceVersion
	Clock          Clock          // optional; defaults to SystemClock
	Random         Random         // optional; defaults to CryptoRandom
	Logger         *charmlog.Logger // optional; defaults to a discard logger
}

// DefaultOptions returns the tunables a conservative authenticator should start with.
func DefaultOptions() Options {
	return Options{
		MaxChannels:    DefaultMaxChannels,
		IdleLifetimeMS: DefaultIdleLifetime.Milliseconds(),
		TxnTimeoutMS:   DefaultTxnTimeout.Milliseconds(),
		Capability:     CapWink | CapLock,
		DeviceVersion: DeviceVersion{
			Major: DefaultDeviceVersionMajor,
			Minor: DefaultDeviceVersionMinor,
			Build: DefaultDeviceVersionBuild,
		},
	}
}

// Engine is the concrete upward API of the transport engine: it owns the
// ChannelTable, Reassembler, Fragmenter, CommandDispatcher, and Scheduler,
// and is what an embedding application constructs and drives.
type Engine struct {
	opts       Options
	table      *ChannelTable
	reassembly *Reassembler
	frag       *Fragmenter
	dispatcher *CommandDispatcher
	scheduler  *Scheduler
	transport  Transport
}

// New wires a complete Engine. backends.APDU and backends.Wink are
// required; backends.CBOR is required only if opts.Capability includes
// CapCBOR.
func New(opts Options, transport Transport, backends Backends) (*Engine, error) {
	if transport == nil {
		return nil, fmt.Errorf("ctaphid: transport must not be nil")
	}
	if backends.APDU == nil {
		return nil, fmt.Errorf("ctaphid: APDU backend must not be nil")
	}
	if backends.Wink == nil {
		return nil, fmt.Errorf("ctaphid: wink backend must not be nil")
	}
	if opts.Capability&CapCBOR != 0 && backends.CBOR == nil {
		return nil, fmt.Errorf("ctaphid: CBOR capability advertised but no CBOR backend supplied")
	}
	if opts.MaxChannels <= 0 {
		return nil, fmt.Errorf("ctaphid: MaxChannels must be positive")
	}

	clock := opts.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	rnd := opts.Random
	if rnd == nil {
		rnd = CryptoRandom{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	table := NewChannelTable(opts.MaxChannels, clock, opts.IdleLifetimeMS)
	table.SetLogger(logger)
	reassembly := NewReassembler(table, clock, opts.TxnTimeoutMS)
	frag := NewFragmenter()
	dispatcher := NewCommandDispatcher(table, frag, rnd, clock, opts.Capability, opts.DeviceVersion, backends)
	dispatcher.SetLogger(logger)
	scheduler := NewScheduler(table, reassembly, dispatcher, frag, transport, clock, opts.TxnTimeoutMS)
	scheduler.SetLogger(logger)

	return &Engine{
		opts:       opts,
		table:      table,
		reassembly: reassembly,
		frag:       frag,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		transport:  transport,
	}, nil
}

// Configure performs no work and returns nil. The Transport is already live
// once New returns, so there is no first receive to arm, and Configure
// starts no timer: the embedder calls PeriodicTick itself (cmd/ctaphid-demo
// drives it from a time.Ticker).
func (e *Engine) Configure() error { return nil }

// RunOnce drives one iteration of the engine.
func (e *Engine) RunOnce(ctx context.Context) error {
	return e.scheduler.RunOnce(ctx)
}

// PeriodicTick runs the ~1s cleanup tick.
func (e *Engine) PeriodicTick() {
	e.scheduler.PeriodicTick()
}
