package featureprobe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/featureprobe/featureprobe-go-client/evaluation"
)

// Synchronizer keeps a DataRepository up to date with toggle and segment
// definitions from some source. Start launches the sync loop and returns a
// channel that is closed once the first sync attempt completes, successful or
// not, so callers can bound their wait for startup without hanging on a
// failing source. Whether data actually arrived is the repository's
// Initialized state.
type Synchronizer interface {
	Start(ctx context.Context) <-chan struct{}
	Close()
}

// pollingSynchronizer fetches the full repository over HTTP on a fixed
// interval. The first fetch happens immediately on Start.
type pollingSynchronizer struct {
	client   *resty.Client
	url      string
	interval time.Duration
	repo     *DataRepository
	log      *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

func newPollingSynchronizer(client *resty.Client, url string, interval time.Duration, repo *DataRepository, log *slog.Logger) *pollingSynchronizer {
	return &pollingSynchronizer{
		client:   client,
		url:      url,
		interval: interval,
		repo:     repo,
		log: log.With(
			slog.String("worker", "polling"),
			slog.String("url", url),
		),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *pollingSynchronizer) Start(ctx context.Context) <-chan struct{} {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	return s.ready
}

func (s *pollingSynchronizer) loop(ctx context.Context) {
	defer close(s.done)
	s.poll(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll fetches and applies one repository snapshot, closing the ready channel
// once the attempt completes either way. Failures are logged and the previous
// snapshot stays in place until the next tick succeeds. The response is
// decoded as JSON regardless of its declared content type, so a 200 carrying
// a proxy error page is a failed fetch, not an empty ruleset.
func (s *pollingSynchronizer) poll(ctx context.Context) {
	defer s.readyOnce.Do(func() { close(s.ready) })
	var data evaluation.Repository
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&data).
		ForceContentType("application/json").
		Get(s.url)
	if err != nil {
		s.log.Error("failed to fetch repository", "error", err)
		return
	}
	if resp.IsError() {
		s.log.Error("failed to fetch repository",
			"error", apiError{status: resp.StatusCode(), url: s.url})
		return
	}
	s.repo.Refresh(&data)
}

func (s *pollingSynchronizer) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
