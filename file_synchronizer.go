package featureprobe

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/featureprobe/featureprobe-go-client/evaluation"
)

// fileSynchronizer loads the repository once from a local JSON file. It is
// meant for tests and offline use; the file is not watched for changes.
type fileSynchronizer struct {
	location string
	repo     *DataRepository
	log      *slog.Logger
	ready    chan struct{}
}

func newFileSynchronizer(location string, repo *DataRepository, log *slog.Logger) *fileSynchronizer {
	return &fileSynchronizer{
		location: location,
		repo:     repo,
		log: log.With(
			slog.String("worker", "file"),
			slog.String("location", location),
		),
		ready: make(chan struct{}),
	}
}

// Start loads the file once. The ready channel closes even when the load
// fails, so a bad path cannot hang a caller waiting on startup.
func (s *fileSynchronizer) Start(_ context.Context) <-chan struct{} {
	defer close(s.ready)
	raw, err := os.ReadFile(s.location)
	if err != nil {
		s.log.Error("failed to read repository file", "error", err)
		return s.ready
	}
	var data evaluation.Repository
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Error("failed to parse repository file", "error", err)
		return s.ready
	}
	s.repo.Refresh(&data)
	return s.ready
}

func (s *fileSynchronizer) Close() {}
