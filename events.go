package featureprobe

import (
	"strconv"
	"time"

	"github.com/featureprobe/featureprobe-go-client/evaluation"
)

// Event is an analytics or debug record shipped to the reporting endpoint.
type Event interface {
	EventKind() string
}

type baseEvent struct {
	Kind string `json:"kind"`
	Time string `json:"time"`
	User string `json:"user"`
}

func (e baseEvent) EventKind() string { return e.Kind }

func newBaseEvent(kind, userKey string) baseEvent {
	return baseEvent{
		Kind: kind,
		Time: strconv.FormatInt(time.Now().UnixMilli(), 10),
		User: userKey,
	}
}

// AccessEvent records one toggle evaluation outcome. Every access is folded
// into the summary counters; toggles that opted into full tracking
// additionally report the raw event.
type AccessEvent struct {
	baseEvent
	Key            string      `json:"key"`
	Value          interface{} `json:"value"`
	Version        *uint64     `json:"version"`
	VariationIndex *int        `json:"variationIndex"`
	RuleIndex      *int        `json:"ruleIndex"`

	trackAccessEvents bool
}

func NewAccessEvent(userKey, toggleKey string, value interface{}, version *uint64, variationIndex, ruleIndex *int, trackAccessEvents bool) *AccessEvent {
	return &AccessEvent{
		baseEvent:         newBaseEvent("access", userKey),
		Key:               toggleKey,
		Value:             value,
		Version:           version,
		VariationIndex:    variationIndex,
		RuleIndex:         ruleIndex,
		trackAccessEvents: trackAccessEvents,
	}
}

// DebugEvent is a full evaluation trace, emitted only while the ruleset's
// debug deadline has not elapsed.
type DebugEvent struct {
	baseEvent
	UserDetail     *evaluation.User `json:"userDetail"`
	Key            string           `json:"key"`
	Value          interface{}      `json:"value"`
	Version        *uint64          `json:"version"`
	VariationIndex *int             `json:"variationIndex"`
	RuleIndex      *int             `json:"ruleIndex"`
	Reason         string           `json:"reason"`
}

func NewDebugEvent(user *evaluation.User, toggleKey string, value interface{}, version *uint64, variationIndex, ruleIndex *int, reason string) *DebugEvent {
	return &DebugEvent{
		baseEvent:      newBaseEvent("debug", user.Key),
		UserDetail:     user,
		Key:            toggleKey,
		Value:          value,
		Version:        version,
		VariationIndex: variationIndex,
		RuleIndex:      ruleIndex,
		Reason:         reason,
	}
}

// CustomEvent is an application-defined conversion event.
type CustomEvent struct {
	baseEvent
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

func NewCustomEvent(userKey, name string, value *float64) *CustomEvent {
	return &CustomEvent{
		baseEvent: newBaseEvent("custom", userKey),
		Name:      name,
		Value:     value,
	}
}

// AccessCounter accumulates accesses of one (version, variation index) group
// of a toggle; the first occurrence records the served value.
type AccessCounter struct {
	Count   uint64      `json:"count"`
	Value   interface{} `json:"value"`
	Version *uint64     `json:"version"`
	Index   *int        `json:"index"`
}

func (c *AccessCounter) isGroup(version *uint64, index *int) bool {
	return equalUint64Ptr(c.Version, version) && equalIntPtr(c.Index, index)
}

func (c *AccessCounter) clone() *AccessCounter {
	clone := *c
	return &clone
}

// AccessSummaryRecorder folds access events into per-toggle counters keyed by
// (variation version, variation index). Not safe for concurrent use; the
// event processor's consumer loop is its only writer.
type AccessSummaryRecorder struct {
	Counters  map[string][]*AccessCounter `json:"counters"`
	StartTime int64                       `json:"startTime"`
	EndTime   int64                       `json:"endTime"`
}

func NewAccessSummaryRecorder() *AccessSummaryRecorder {
	return &AccessSummaryRecorder{Counters: make(map[string][]*AccessCounter)}
}

func (r *AccessSummaryRecorder) Add(event *AccessEvent) {
	if len(r.Counters) == 0 {
		r.StartTime = time.Now().UnixMilli()
	}
	for _, counter := range r.Counters[event.Key] {
		if counter.isGroup(event.Version, event.VariationIndex) {
			counter.Count++
			return
		}
	}
	r.Counters[event.Key] = append(r.Counters[event.Key], &AccessCounter{
		Count:   1,
		Value:   event.Value,
		Version: event.Version,
		Index:   event.VariationIndex,
	})
}

// Snapshot deep-copies the counters so in-flight mutation of the live
// recorder cannot race a send, and stamps the end time.
func (r *AccessSummaryRecorder) Snapshot() *AccessSummaryRecorder {
	counters := make(map[string][]*AccessCounter, len(r.Counters))
	for key, group := range r.Counters {
		cloned := make([]*AccessCounter, len(group))
		for i, counter := range group {
			cloned[i] = counter.clone()
		}
		counters[key] = cloned
	}
	return &AccessSummaryRecorder{
		Counters:  counters,
		StartTime: r.StartTime,
		EndTime:   time.Now().UnixMilli(),
	}
}

func (r *AccessSummaryRecorder) Clear() {
	r.Counters = make(map[string][]*AccessCounter)
}

// eventRepository is one flush window's worth of telemetry: raw events plus
// the access summary, serialized together as one batch element.
type eventRepository struct {
	Events []Event                `json:"events"`
	Access *AccessSummaryRecorder `json:"access"`
}

func newEventRepository() *eventRepository {
	return &eventRepository{
		Events: make([]Event, 0),
		Access: NewAccessSummaryRecorder(),
	}
}

func (r *eventRepository) add(event Event) {
	if access, ok := event.(*AccessEvent); ok {
		r.Access.Add(access)
		if access.trackAccessEvents {
			r.Events = append(r.Events, access)
		}
		return
	}
	r.Events = append(r.Events, event)
}

func (r *eventRepository) empty() bool {
	return len(r.Events) == 0 && len(r.Access.Counters) == 0
}

func (r *eventRepository) snapshot() *eventRepository {
	events := make([]Event, len(r.Events))
	copy(events, r.Events)
	return &eventRepository{Events: events, Access: r.Access.Snapshot()}
}

func (r *eventRepository) clear() {
	r.Events = make([]Event, 0)
	r.Access.Clear()
}

func equalUint64Ptr(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
