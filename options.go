package featureprobe

import (
	"log/slog"
	"time"
)

type Option func(c *config)

var _ = []Option{
	WithRemoteURL(""),
	WithSynchronizerURL(""),
	WithEventsURL(""),
	WithRealtimeURL(""),
	WithPollingMode(0),
	WithStreamingMode(0),
	WithFileMode(""),
	WithRequestTimeout(0),
	WithStartWait(0),
	WithPrerequisiteDepth(0),
	WithRetries(3, 1*time.Second),
	WithCustomHeaders(nil),
	WithLogger(nil),
}

// WithRemoteURL sets the base URL of the FeatureProbe server; the
// synchronizer, events and realtime URLs are derived from it unless
// overridden individually.
func WithRemoteURL(url string) Option {
	return func(c *config) {
		c.remoteURL = url
	}
}

func WithSynchronizerURL(url string) Option {
	return func(c *config) {
		c.synchronizerURL = url
	}
}

func WithEventsURL(url string) Option {
	return func(c *config) {
		c.eventsURL = url
	}
}

func WithRealtimeURL(url string) Option {
	return func(c *config) {
		c.realtimeURL = url
	}
}

// WithPollingMode synchronizes toggles and segments from the server on a
// fixed interval. Zero interval keeps the default.
func WithPollingMode(refreshInterval time.Duration) Option {
	return func(c *config) {
		c.mode = pollingSync
		if refreshInterval > 0 {
			c.refreshInterval = refreshInterval
		}
	}
}

// WithStreamingMode polls like WithPollingMode and additionally listens on a
// realtime stream, triggering an immediate poll on every update notification.
func WithStreamingMode(refreshInterval time.Duration) Option {
	return func(c *config) {
		c.mode = streamingSync
		c.refreshInterval = DefaultStreamingRefreshInterval
		if refreshInterval > 0 {
			c.refreshInterval = refreshInterval
		}
	}
}

// WithFileMode loads toggles and segments once from a local repository file.
func WithFileMode(location string) Option {
	return func(c *config) {
		c.mode = fileSync
		if location != "" {
			c.fileLocation = location
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = timeout
	}
}

// WithStartWait bounds how long NewClient blocks for the first
// synchronization. Use WaitForever to block until it completes.
func WithStartWait(timeout time.Duration) Option {
	return func(c *config) {
		c.startWait = timeout
	}
}

// WithPrerequisiteDepth restricts the depth of prerequisite evaluation.
func WithPrerequisiteDepth(depth int) Option {
	return func(c *config) {
		if depth > 0 {
			c.prerequisiteDepth = depth
		}
	}
}

func WithRetries(count int, waitTime time.Duration) Option {
	return func(c *config) {
		c.retryCount = count
		c.retryWait = waitTime
	}
}

func WithCustomHeaders(headers map[string]string) Option {
	return func(c *config) {
		c.headers = headers
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}
