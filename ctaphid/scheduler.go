package ctaphid

import (
	"context"
	"errors"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Transport is the downward HID collaborator contract: the
// USB/HID driver this engine is layered on top of. RecvReport blocks
// (respecting ctx) until a 64-byte OUT report arrives; SendReport sends one
// 64-byte IN report; ResponseDone signals the end of a response flow so
// the driver can release the IN endpoint.
//
// This collapses a report_received/report_sent flag-polling
// design (meant for an interrupt-driven embedded HID stack) into ordinary
// blocking calls gated by context — the ctx deadline plays the role of the
// engine's two racing timeout deadlines.
type Transport interface {
	RecvReport(ctx context.Context) ([]byte, error)
	SendReport(ctx context.Context, frame []byte) error
	ResponseDone()
}

// Scheduler is the single externally-driven "run one iteration" entry
// point plus the periodic cleanup tick.
type Scheduler struct {
	table      *ChannelTable
	reassembly *Reassembler
	dispatcher *CommandDispatcher
	frag       *Fragmenter
	transport  Transport
	clock      Clock
	txnTimeout int64 // milliseconds
	log        *charmlog.Logger
}

// NewScheduler wires a Scheduler over the shared components.
func NewScheduler(table *ChannelTable, reassembly *Reassembler, dispatcher *CommandDispatcher, frag *Fragmenter, transport Transport, clock Clock, txnTimeoutMS int64) *Scheduler {
	return &Scheduler{
		table:      table,
		reassembly: reassembly,
		dispatcher: dispatcher,
		frag:       frag,
		transport:  transport,
		clock:      clock,
		txnTimeout: txnTimeoutMS,
		log:        defaultLogger(),
	}
}

// SetLogger replaces the scheduler's structured logger.
func (s *Scheduler) SetLogger(l *charmlog.Logger) { s.log = l }

// RunOnce implements run_once(): receive one frame (bounded by
// the smaller of the call's own timeout and any in-progress channel's
// remaining transaction budget), then feed it through the Reassembler and
// act on the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	recvCtx, cancel := context.WithTimeout(ctx, s.recvTimeout())
	defer cancel()

	frame, err := s.transport.RecvReport(recvCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.handleRecvTimeout()
			return nil
		}
		return err
	}

	outcome := s.reassembly.Feed(frame)
	switch outcome.Kind {
	case OutcomeNone:
		return nil
	case OutcomeComplete:
		ch := s.table.Get(outcome.CID)
		if ch == nil {
			return nil
		}
		msg := Message{CID: outcome.CID, Command: ch.Cmd, Payload: append([]byte(nil), ch.Payload...)}
		frames := s.dispatcher.Dispatch(ctx, msg)
		return s.send(ctx, frames)
	case OutcomeErr:
		frames := s.frag.Fragment(outcome.Err.CID, CmdError, []byte{byte(outcome.Err.Code)})
		return s.send(ctx, frames)
	}
	return nil
}

// recvTimeout computes the smaller of the call's own TXN_TIMEOUT budget and
// the remaining transaction budget of any channel already in progress.
func (s *Scheduler) recvTimeout() time.Duration {
	now := s.clock.NowMillis()
	remainingMS := s.txnTimeout
	if ch := s.table.FindInProgress(); ch != nil {
		if left := ch.LastActivityMS + s.txnTimeout - now; left < remainingMS {
			remainingMS = left
		}
	}
	if remainingMS < 0 {
		remainingMS = 0
	}
	return time.Duration(remainingMS) * time.Millisecond
}

// handleRecvTimeout implements "if timed out with no frame": only the
// currently in-progress channel's own expiry produces an ERROR; a plain
// idle timeout with no channel in progress is silent.
func (s *Scheduler) handleRecvTimeout() {
	ch := s.table.FindInProgress()
	if ch == nil {
		return
	}
	now := s.clock.NowMillis()
	if now-ch.LastActivityMS <= s.txnTimeout {
		return
	}
	cid := ch.CID
	s.log.Debug("transaction timed out", "cid", cid, "cmd", ch.Cmd)
	s.table.Clear(cid, now)
	frames := s.frag.Fragment(cid, CmdError, []byte{byte(ErrMsgTimeout)})
	// Best effort: a send failure here has nowhere else to be reported,
	// since RunOnce itself already returned nil for the silent-timeout
	// path the caller expects.
	_ = s.send(context.Background(), frames)
}

func (s *Scheduler) send(ctx context.Context, frames [][]byte) error {
	for _, frame := range frames {
		if err := s.transport.SendReport(ctx, frame); err != nil {
			return err
		}
	}
	s.transport.ResponseDone()
	return nil
}

// PeriodicTick implements periodic_tick(): per-CID inactivity
// eviction plus global LOCK expiry, meant to be called roughly once per
// second by an external timer.
func (s *Scheduler) PeriodicTick() {
	now := s.clock.NowMillis()
	s.table.PeriodicCleanup(now)
	s.dispatcher.expireLockIfDue(now)
}
