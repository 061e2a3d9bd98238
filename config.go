package featureprobe

import (
	"log/slog"
	"time"
)

const (
	// Default base URL for a local FeatureProbe server.
	DefaultRemoteURL = "http://localhost:4009/server"

	// Duration between two polls.
	DefaultRefreshInterval          = 5 * time.Second
	DefaultStreamingRefreshInterval = 10 * time.Second

	// Number of seconds to wait for a request to
	// complete before terminating the request.
	DefaultRequestTimeout = 3 * time.Second

	// Time limit for the first synchronization on client construction.
	DefaultStartWait = 5 * time.Second

	// Depth budget for chained toggle prerequisites.
	DefaultPrerequisiteDepth = 20

	DefaultFileLocation = "datasource/repo.json"

	// WaitForever disables the start-wait time limit. The background
	// synchronizer keeps running either way.
	WaitForever = time.Duration(-1)
)

type syncMode int

const (
	pollingSync syncMode = iota
	streamingSync
	fileSync
)

type config struct {
	serverSDKKey      string
	remoteURL         string
	synchronizerURL   string
	eventsURL         string
	realtimeURL       string
	fileLocation      string
	mode              syncMode
	refreshInterval   time.Duration
	requestTimeout    time.Duration
	startWait         time.Duration
	prerequisiteDepth int
	headers           map[string]string
	retryCount        int
	retryWait         time.Duration
	log               *slog.Logger
}

func defaultConfig() config {
	return config{
		remoteURL:         DefaultRemoteURL,
		fileLocation:      DefaultFileLocation,
		mode:              pollingSync,
		refreshInterval:   DefaultRefreshInterval,
		requestTimeout:    DefaultRequestTimeout,
		startWait:         DefaultStartWait,
		prerequisiteDepth: DefaultPrerequisiteDepth,
	}
}

// deriveURLs fills the per-endpoint URLs from the remote base unless they
// were overridden individually.
func (c *config) deriveURLs() {
	if c.synchronizerURL == "" {
		c.synchronizerURL = c.remoteURL + "/api/server-sdk/toggles"
	}
	if c.eventsURL == "" {
		c.eventsURL = c.remoteURL + "/api/events"
	}
	if c.realtimeURL == "" {
		c.realtimeURL = c.remoteURL + "/realtime"
	}
}
