//go:build linux

package hidtransport

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/fidobridge/ctaphid/ctaphid"
)

// PTY is a Transport backed by a Linux pseudo-terminal pair. It lets the
// demo binary run end to end without any real HID hardware: a companion
// process (or a human with `cat`/`xxd`) can open the slave side and push
// raw 64-byte reports.
type PTY struct {
	master *os.File
	slaveName string
}

// OpenPTY opens a fresh /dev/ptmx master, unlocks it, and resolves its
// slave path, using raw ioctls since this transport carries no line
// discipline.
func OpenPTY() (*PTY, error) {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("hidtransport: open /dev/ptmx: %w", err)
	}

	fd := int(master.Fd())
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, fmt.Errorf("hidtransport: unlock pty: %w", err)
	}
	n, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, fmt.Errorf("hidtransport: get pty number: %w", err)
	}

	return &PTY{
		master:    master,
		slaveName: fmt.Sprintf("/dev/pts/%d", n),
	}, nil
}

// SlavePath is the path a companion process should open to talk to this
// transport.
func (p *PTY) SlavePath() string { return p.slaveName }

func (p *PTY) Close() error { return p.master.Close() }

var _ ctaphid.Transport = (*PTY)(nil)

func (p *PTY) RecvReport(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := p.master.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("hidtransport: set read deadline: %w", err)
		}
	}
	buf := make([]byte, ctaphid.FrameLen)
	if _, err := readFull(p.master, buf); err != nil {
		if os.IsTimeout(err) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return buf, nil
}

func (p *PTY) SendReport(ctx context.Context, frame []byte) error {
	_, err := p.master.Write(frame)
	return err
}

func (p *PTY) ResponseDone() {}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
