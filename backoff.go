package featureprobe

import (
	"context"
	"time"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// backoff implements exponential backoff with jitter for stream reconnects.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: initialBackoff}
}

// next returns the delay to wait before the next attempt, doubling the base
// delay up to a cap. Jitter of up to one second avoids reconnect stampedes.
func (b *backoff) next() time.Duration {
	d := b.current + time.Duration(time.Now().UnixNano()%1e9)
	if b.current < maxBackoff {
		b.current *= 2
	}
	return d
}

func (b *backoff) reset() {
	b.current = initialBackoff
}

// wait sleeps for the next backoff delay, or returns early when ctx is done.
func (b *backoff) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.next()):
	}
}
