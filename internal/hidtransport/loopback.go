// Package hidtransport provides concrete implementations of
// ctaphid.Transport: an in-process loopback for tests, a PTY-backed
// transport for manual testing without real hardware, and a real USB HID
// backend for Linux.
package hidtransport

import (
	"context"
	"fmt"

	"github.com/fidobridge/ctaphid/ctaphid"
)

// Loopback is an in-process, channel-pair Transport. Frames written with
// Host are delivered to RecvReport; frames sent via SendReport are
// collected and can be drained with Take. It is used by this package's
// tests and as the demo binary's default transport.
type Loopback struct {
	in  chan []byte
	out chan []byte
}

// NewLoopback creates a Loopback transport with the given inbound buffer
// depth (0 is a valid, synchronous-handoff depth).
func NewLoopback(buffer int) *Loopback {
	return &Loopback{
		in:  make(chan []byte, buffer),
		out: make(chan []byte, buffer*4+16),
	}
}

var _ ctaphid.Transport = (*Loopback)(nil)

// Host delivers one frame as if it arrived from the host. It blocks while
// the inbound buffer is full and takes no context, so it cannot be
// cancelled.
func (l *Loopback) Host(frame []byte) {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	l.in <- buf
}

// Take drains one frame the engine has sent back to the host, blocking
// until one is available or ctx is done.
func (l *Loopback) Take(ctx context.Context) ([]byte, error) {
	select {
	case f := <-l.out:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loopback) RecvReport(ctx context.Context) ([]byte, error) {
	select {
	case f := <-l.in:
		if len(f) != ctaphid.FrameLen {
			return nil, fmt.Errorf("hidtransport: report must be %d bytes, got %d", ctaphid.FrameLen, len(f))
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loopback) SendReport(ctx context.Context, frame []byte) error {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	select {
	case l.out <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) ResponseDone() {}
