package hidtransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidobridge/ctaphid/ctaphid"
)

func TestLoopbackRoundTripsOneFrame(t *testing.T) {
	l := NewLoopback(1)
	frame := make([]byte, ctaphid.FrameLen)
	frame[0] = 0xAB

	l.Host(frame)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := l.RecvReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestLoopbackSendThenTake(t *testing.T) {
	l := NewLoopback(1)
	frame := make([]byte, ctaphid.FrameLen)
	frame[0] = 0xCD

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.SendReport(ctx, frame))
	l.ResponseDone()

	got, err := l.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestLoopbackRecvRejectsWrongSizedFrame(t *testing.T) {
	l := NewLoopback(1)
	l.Host([]byte{1, 2, 3})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := l.RecvReport(ctx)
	require.Error(t, err)
}

func TestLoopbackRecvRespectsContextCancellation(t *testing.T) {
	l := NewLoopback(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.RecvReport(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopbackImplementsTransport(t *testing.T) {
	var _ ctaphid.Transport = NewLoopback(0)
}
