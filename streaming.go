package featureprobe

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// A connection that stayed up this long counts as healthy; the next
// reconnect cycle then starts its backoff from scratch.
const streamHealthyLifetime = time.Minute

// streamingSynchronizer layers a server-sent-events listener on top of a
// pollingSynchronizer. The poller runs at a relaxed interval as a safety net;
// whenever the stream announces a change, the repository is re-fetched
// immediately instead of waiting for the next tick.
type streamingSynchronizer struct {
	poller      *pollingSynchronizer
	realtimeURL string
	log         *slog.Logger

	backoff *backoff
	cancel  context.CancelFunc
	done    chan struct{}
}

func newStreamingSynchronizer(poller *pollingSynchronizer, realtimeURL string, log *slog.Logger) *streamingSynchronizer {
	return &streamingSynchronizer{
		poller:      poller,
		realtimeURL: realtimeURL,
		log: log.With(
			slog.String("worker", "streaming"),
			slog.String("stream", realtimeURL),
		),
		backoff: newBackoff(),
		done:    make(chan struct{}),
	}
}

func (s *streamingSynchronizer) Start(ctx context.Context) <-chan struct{} {
	ctx, s.cancel = context.WithCancel(ctx)
	ready := s.poller.Start(ctx)
	go s.listen(ctx)
	return ready
}

// listen reconnects the stream until ctx is cancelled. Every reconnect waits
// out the backoff, clean close included: a server that accepts and promptly
// drops the stream must not be hammered in a zero-delay loop. The backoff
// resets only after a connection survived long enough to count as healthy.
func (s *streamingSynchronizer) listen(ctx context.Context) {
	defer close(s.done)
	defer s.log.Info("stopped")
	for ctx.Err() == nil {
		connected := time.Now()
		if err := s.connect(ctx); err != nil {
			s.log.Error("failed to connect", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		if time.Since(connected) >= streamHealthyLifetime {
			s.backoff.reset()
		}
		s.backoff.wait(ctx)
	}
}

// connect holds the SSE connection open, triggering an immediate poll for
// every data event. Returning nil means the server closed the stream cleanly.
func (s *streamingSynchronizer) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.realtimeURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	s.log.Info("connected")

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				s.log.Debug("change notification received")
				s.poller.poll(ctx)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Error("failed to read from stream", "error", err)
		return err
	}
	return nil
}

func (s *streamingSynchronizer) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.poller.Close()
}
