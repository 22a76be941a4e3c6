package ctaphid

import "time"

// Clock is the monotonic millisecond tick leaf collaborator.
// It is deliberately minimal so tests can inject a fake without pulling in
// a timer.
type Clock interface {
	NowMillis() int64
}

// SystemClock is the real Clock, backed by the monotonic reading inside
// time.Now().
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock anchored at the moment of construction.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowMillis() int64 {
	return time.Since(c.start).Milliseconds()
}
