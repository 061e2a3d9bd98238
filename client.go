package featureprobe

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/featureprobe/featureprobe-go-client/evaluation"
)

// FPUser carries the stable key and string attributes a toggle is evaluated
// against.
type FPUser = evaluation.User

// NewUser creates a user with a generated key. Use StableRollout to pin the
// key once a real identity is known.
func NewUser() *FPUser {
	return evaluation.NewUser()
}

// FPDetail is an evaluation result together with where it came from: the rule
// and variation that produced the value, the ruleset version, and a
// human-readable reason.
type FPDetail struct {
	Value          interface{} `json:"value"`
	RuleIndex      *int        `json:"ruleIndex"`
	VariationIndex *int        `json:"variationIndex"`
	Version        *uint64     `json:"version"`
	Reason         string      `json:"reason"`
}

// FPClient evaluates feature toggles against locally synchronized rulesets
// and reports usage events. A single client is safe for concurrent use and
// should be shared; Close releases its background workers.
type FPClient struct {
	cfg          config
	repo         *DataRepository
	synchronizer Synchronizer
	events       EventProcessor
	log          *slog.Logger
}

// NewClient builds a client and starts synchronization. It blocks until the
// first sync attempt completes or the configured start wait elapses; either
// way the client is returned and keeps synchronizing in the background,
// evaluating to defaults until data arrives.
func NewClient(serverSDKKey string, opts ...Option) (*FPClient, error) {
	if serverSDKKey == "" {
		return nil, ErrBlankServerSDKKey
	}

	cfg := defaultConfig()
	cfg.serverSDKKey = serverSDKKey
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = noopLogger()
	}
	cfg.deriveURLs()

	httpClient := resty.New().
		SetTimeout(cfg.requestTimeout).
		SetLogger(restySlogLogger{cfg.log}).
		SetHeader("Authorization", serverSDKKey).
		SetHeader("User-Agent", getUserAgent()).
		SetHeaders(cfg.headers)
	if cfg.retryCount > 0 {
		httpClient.
			SetRetryCount(cfg.retryCount).
			SetRetryWaitTime(cfg.retryWait)
	}

	repo := &DataRepository{}
	c := &FPClient{
		cfg:          cfg,
		repo:         repo,
		synchronizer: newSynchronizer(cfg, httpClient, repo),
		events:       newEventProcessor(httpClient, cfg.eventsURL, flushInterval, cfg.log),
		log:          cfg.log,
	}

	ready := c.synchronizer.Start(context.Background())
	if cfg.startWait == WaitForever {
		<-ready
	} else if cfg.startWait > 0 {
		select {
		case <-ready:
		case <-time.After(cfg.startWait):
			c.log.Warn("timed out waiting for first synchronization",
				slog.Duration("startWait", cfg.startWait))
		}
	}
	if !repo.Initialized() {
		c.log.Warn("client created before repository initialized, evaluations return defaults until data arrives")
	}
	return c, nil
}

func newSynchronizer(cfg config, httpClient *resty.Client, repo *DataRepository) Synchronizer {
	switch cfg.mode {
	case fileSync:
		return newFileSynchronizer(cfg.fileLocation, repo, cfg.log)
	case streamingSync:
		poller := newPollingSynchronizer(httpClient, cfg.synchronizerURL, cfg.refreshInterval, repo, cfg.log)
		return newStreamingSynchronizer(poller, cfg.realtimeURL, cfg.log)
	default:
		return newPollingSynchronizer(httpClient, cfg.synchronizerURL, cfg.refreshInterval, repo, cfg.log)
	}
}

// Initialized reports whether at least one ruleset snapshot has been loaded.
func (c *FPClient) Initialized() bool {
	return c.repo.Initialized()
}

// BoolValue evaluates a bool toggle and returns defaultValue whenever the
// toggle is unknown, of another type, or the repository has no data yet.
func (c *FPClient) BoolValue(toggleKey string, user *FPUser, defaultValue bool) bool {
	detail := c.genericDetail(toggleKey, user, defaultValue)
	value, ok := detail.Value.(bool)
	if !ok {
		return defaultValue
	}
	return value
}

func (c *FPClient) StringValue(toggleKey string, user *FPUser, defaultValue string) string {
	detail := c.genericDetail(toggleKey, user, defaultValue)
	value, ok := detail.Value.(string)
	if !ok {
		return defaultValue
	}
	return value
}

func (c *FPClient) NumberValue(toggleKey string, user *FPUser, defaultValue float64) float64 {
	detail := c.genericDetail(toggleKey, user, defaultValue)
	value, ok := detail.Value.(float64)
	if !ok {
		return defaultValue
	}
	return value
}

// JSONValue evaluates a toggle whose variations are arbitrary JSON values.
func (c *FPClient) JSONValue(toggleKey string, user *FPUser, defaultValue interface{}) interface{} {
	return c.genericDetail(toggleKey, user, defaultValue).Value
}

func (c *FPClient) BoolDetail(toggleKey string, user *FPUser, defaultValue bool) FPDetail {
	detail := c.genericDetail(toggleKey, user, defaultValue)
	if _, ok := detail.Value.(bool); !ok {
		return typeMismatchDetail(detail, defaultValue)
	}
	return detail
}

func (c *FPClient) StringDetail(toggleKey string, user *FPUser, defaultValue string) FPDetail {
	detail := c.genericDetail(toggleKey, user, defaultValue)
	if _, ok := detail.Value.(string); !ok {
		return typeMismatchDetail(detail, defaultValue)
	}
	return detail
}

func (c *FPClient) NumberDetail(toggleKey string, user *FPUser, defaultValue float64) FPDetail {
	detail := c.genericDetail(toggleKey, user, defaultValue)
	if _, ok := detail.Value.(float64); !ok {
		return typeMismatchDetail(detail, defaultValue)
	}
	return detail
}

func (c *FPClient) JSONDetail(toggleKey string, user *FPUser, defaultValue interface{}) FPDetail {
	return c.genericDetail(toggleKey, user, defaultValue)
}

func typeMismatchDetail(detail FPDetail, defaultValue interface{}) FPDetail {
	detail.Value = defaultValue
	detail.Reason = "Toggle data type mismatch"
	return detail
}

func (c *FPClient) genericDetail(toggleKey string, user *FPUser, defaultValue interface{}) FPDetail {
	if !c.repo.Initialized() {
		c.log.Warn("evaluation before repository initialized",
			slog.String("toggle", toggleKey))
		return FPDetail{Value: defaultValue, Reason: "FeatureProbe repository uninitialized"}
	}
	toggle, ok := c.repo.GetToggle(toggleKey)
	if !ok {
		return FPDetail{Value: defaultValue, Reason: "Toggle not exist"}
	}
	result := toggle.Eval(user, c.repo.Toggles(), c.repo.Segments(), defaultValue, c.cfg.prerequisiteDepth)
	c.trackEvent(user, toggle, result)
	version := result.Version
	return FPDetail{
		Value:          result.Value,
		RuleIndex:      result.RuleIndex,
		VariationIndex: result.VariationIndex,
		Version:        &version,
		Reason:         result.Reason,
	}
}

func (c *FPClient) trackEvent(user *FPUser, toggle *evaluation.Toggle, result evaluation.Result) {
	version := result.Version
	c.events.Push(NewAccessEvent(
		user.Key, toggle.Key, result.Value, &version,
		result.VariationIndex, result.RuleIndex, toggle.TrackAccessEvents,
	))
	if c.repo.DebugUntilTime() >= time.Now().UnixMilli() {
		c.events.Push(NewDebugEvent(
			user, toggle.Key, result.Value, &version,
			result.VariationIndex, result.RuleIndex, result.Reason,
		))
	}
}

// Track reports a custom event, optionally carrying a metric value.
func (c *FPClient) Track(eventName string, user *FPUser, value ...float64) {
	var metric *float64
	if len(value) > 0 {
		metric = &value[0]
	}
	c.events.Push(NewCustomEvent(user.Key, eventName, metric))
}

// Flush forces the pending events out without waiting for the flush tick.
func (c *FPClient) Flush() {
	c.events.Flush()
}

// Close flushes outstanding events and stops the background workers. The
// client must not be used afterwards.
func (c *FPClient) Close() {
	c.events.Shutdown()
	c.synchronizer.Close()
	c.repo.Close()
}
