package featureprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoFixture(t *testing.T) []byte {
	raw, err := os.ReadFile("testdata/repo.json")
	require.NoError(t, err)
	return raw
}

func TestPollingSynchronizerLoadsRepository(t *testing.T) {
	fixture := repoFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	defer server.Close()

	repo := &DataRepository{}
	sync := newPollingSynchronizer(resty.New(), server.URL, time.Hour, repo, noopLogger())
	defer sync.Close()

	ready := sync.Start(context.Background())
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("first synchronization did not complete")
	}

	assert.True(t, repo.Initialized())
	toggle, ok := repo.GetToggle("bool_toggle")
	require.True(t, ok)
	assert.Equal(t, uint64(1), toggle.Version)
	_, ok = repo.GetSegment("internal_users")
	assert.True(t, ok)
}

func TestPollingSynchronizerRefetchesOnInterval(t *testing.T) {
	fixture := repoFixture(t)
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_, _ = w.Write(fixture)
	}))
	defer server.Close()

	repo := &DataRepository{}
	sync := newPollingSynchronizer(resty.New(), server.URL, 20*time.Millisecond, repo, noopLogger())
	defer sync.Close()
	<-sync.Start(context.Background())

	assert.Eventually(t, func() bool {
		return polls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollingSynchronizerKeepsCacheOnServerError(t *testing.T) {
	fixture := repoFixture(t)
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(fixture)
	}))
	defer server.Close()

	repo := &DataRepository{}
	sync := newPollingSynchronizer(resty.New(), server.URL, 20*time.Millisecond, repo, noopLogger())
	defer sync.Close()
	<-sync.Start(context.Background())

	failing.Store(true)
	time.Sleep(100 * time.Millisecond)

	assert.True(t, repo.Initialized())
	_, ok := repo.GetToggle("bool_toggle")
	assert.True(t, ok)
}

func TestPollingSynchronizerReadyClosesAfterFailedFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	repo := &DataRepository{}
	sync := newPollingSynchronizer(resty.New(), server.URL, time.Hour, repo, noopLogger())
	defer sync.Close()

	ready := sync.Start(context.Background())
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("ready must close once the first attempt completes, even a failed one")
	}
	assert.False(t, repo.Initialized())
}

func TestPollingSynchronizerDecodesResponseWithoutJSONContentType(t *testing.T) {
	fixture := repoFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(fixture)
	}))
	defer server.Close()

	repo := &DataRepository{}
	sync := newPollingSynchronizer(resty.New(), server.URL, time.Hour, repo, noopLogger())
	defer sync.Close()
	<-sync.Start(context.Background())

	assert.True(t, repo.Initialized())
	_, ok := repo.GetToggle("bool_toggle")
	assert.True(t, ok)
}

func TestPollingSynchronizerKeepsCacheOnNonJSONBody(t *testing.T) {
	fixture := repoFixture(t)
	var garbled atomic.Bool
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		if garbled.Load() {
			// a proxy error page: 200 but not a ruleset
			_, _ = w.Write([]byte("Service Unavailable"))
			return
		}
		_, _ = w.Write(fixture)
	}))
	defer server.Close()

	repo := &DataRepository{}
	sync := newPollingSynchronizer(resty.New(), server.URL, 20*time.Millisecond, repo, noopLogger())
	defer sync.Close()
	<-sync.Start(context.Background())

	garbled.Store(true)
	before := polls.Load()
	assert.Eventually(t, func() bool {
		return polls.Load() >= before+2
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, repo.Initialized())
	_, ok := repo.GetToggle("bool_toggle")
	assert.True(t, ok)
}

func TestFileSynchronizerLoadsRepository(t *testing.T) {
	repo := &DataRepository{}
	sync := newFileSynchronizer("testdata/repo.json", repo, noopLogger())
	defer sync.Close()

	ready := sync.Start(context.Background())
	select {
	case <-ready:
	default:
		t.Fatal("file load completes before Start returns")
	}

	assert.True(t, repo.Initialized())
	_, ok := repo.GetToggle("string_toggle")
	assert.True(t, ok)
}

func TestFileSynchronizerMissingFileStillClosesReady(t *testing.T) {
	repo := &DataRepository{}
	sync := newFileSynchronizer("testdata/does_not_exist.json", repo, noopLogger())

	ready := sync.Start(context.Background())
	select {
	case <-ready:
	default:
		t.Fatal("ready must close even when the file is missing")
	}
	assert.False(t, repo.Initialized())
}

func TestFileSynchronizerMalformedFile(t *testing.T) {
	path := t.TempDir() + "/repo.json"
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	repo := &DataRepository{}
	sync := newFileSynchronizer(path, repo, noopLogger())
	ready := sync.Start(context.Background())

	select {
	case <-ready:
	default:
		t.Fatal("ready must close even when the file is malformed")
	}
	assert.False(t, repo.Initialized())
}

func TestStreamingSynchronizerBacksOffWhenStreamClosesImmediately(t *testing.T) {
	fixture := repoFixture(t)
	var connects atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/toggles", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fixture)
	})
	mux.HandleFunc("/realtime", func(w http.ResponseWriter, r *http.Request) {
		// accept and drop straight away
		connects.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repo := &DataRepository{}
	poller := newPollingSynchronizer(resty.New(), server.URL+"/toggles", time.Hour, repo, noopLogger())
	sync := newStreamingSynchronizer(poller, server.URL+"/realtime", noopLogger())
	defer sync.Close()

	<-sync.Start(context.Background())
	time.Sleep(300 * time.Millisecond)

	// the first reconnect waits out at least the 200ms initial backoff, so a
	// zero-delay loop would show up here as dozens of connections
	assert.LessOrEqual(t, connects.Load(), int32(2))
	assert.GreaterOrEqual(t, connects.Load(), int32(1))
}

func TestStreamingSynchronizerPollsOnNotification(t *testing.T) {
	fixture := repoFixture(t)
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/toggles", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_, _ = w.Write(fixture)
	})
	mux.HandleFunc("/realtime", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		_, _ = w.Write([]byte("data: {\"type\":\"update\"}\n\n"))
		flusher.Flush()
		<-r.Context().Done()
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repo := &DataRepository{}
	poller := newPollingSynchronizer(resty.New(), server.URL+"/toggles", time.Hour, repo, noopLogger())
	sync := newStreamingSynchronizer(poller, server.URL+"/realtime", noopLogger())
	defer sync.Close()

	<-sync.Start(context.Background())

	// one immediate poll plus one triggered by the stream notification
	assert.Eventually(t, func() bool {
		return polls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, repo.Initialized())
}
