package featureprobe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/featureprobe/featureprobe-go-client/evaluation"
)

func uint64Ptr(v uint64) *uint64 { return &v }
func intPtr(v int) *int          { return &v }

func TestAccessSummaryRecorderGroupsByVersionAndIndex(t *testing.T) {
	recorder := NewAccessSummaryRecorder()

	recorder.Add(NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, false))
	recorder.Add(NewAccessEvent("u2", "t1", true, uint64Ptr(1), intPtr(0), nil, false))
	recorder.Add(NewAccessEvent("u3", "t1", false, uint64Ptr(1), intPtr(1), nil, false))
	recorder.Add(NewAccessEvent("u4", "t2", "x", uint64Ptr(7), intPtr(0), nil, false))

	assert.Len(t, recorder.Counters["t1"], 2)
	assert.Equal(t, uint64(2), recorder.Counters["t1"][0].Count)
	assert.Equal(t, uint64(1), recorder.Counters["t1"][1].Count)
	assert.Len(t, recorder.Counters["t2"], 1)
	assert.Greater(t, recorder.StartTime, int64(0))
}

func TestAccessSummaryRecorderVersionChangeOpensNewGroup(t *testing.T) {
	recorder := NewAccessSummaryRecorder()

	recorder.Add(NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, false))
	recorder.Add(NewAccessEvent("u1", "t1", true, uint64Ptr(2), intPtr(0), nil, false))

	assert.Len(t, recorder.Counters["t1"], 2)
}

func TestAccessSummaryRecorderSnapshotIsDeepCopy(t *testing.T) {
	recorder := NewAccessSummaryRecorder()
	recorder.Add(NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, false))

	snapshot := recorder.Snapshot()
	recorder.Add(NewAccessEvent("u2", "t1", true, uint64Ptr(1), intPtr(0), nil, false))

	assert.Equal(t, uint64(1), snapshot.Counters["t1"][0].Count)
	assert.Equal(t, uint64(2), recorder.Counters["t1"][0].Count)
	assert.Greater(t, snapshot.EndTime, int64(0))
	assert.Equal(t, recorder.StartTime, snapshot.StartTime)
}

func TestAccessSummaryRecorderSnapshotThenClear(t *testing.T) {
	recorder := NewAccessSummaryRecorder()
	recorder.Add(NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, false))
	startBefore := recorder.StartTime

	snapshot := recorder.Snapshot()
	recorder.Clear()

	assert.Empty(t, recorder.Counters)
	assert.Greater(t, snapshot.EndTime, int64(0))
	assert.Equal(t, startBefore, snapshot.StartTime)
	assert.Len(t, snapshot.Counters["t1"], 1)
}

func TestAccessSummaryRecorderClear(t *testing.T) {
	recorder := NewAccessSummaryRecorder()
	recorder.Add(NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, false))

	recorder.Clear()

	assert.Empty(t, recorder.Counters)
}

func TestEventRepositoryQueuesRawAccessOnlyWhenTracked(t *testing.T) {
	repo := newEventRepository()

	repo.add(NewAccessEvent("u1", "tracked", true, uint64Ptr(1), intPtr(0), nil, true))
	repo.add(NewAccessEvent("u2", "summarized", true, uint64Ptr(1), intPtr(0), nil, false))

	assert.Len(t, repo.Events, 1)
	assert.Len(t, repo.Access.Counters, 2)
}

func TestEventRepositoryQueuesCustomAndDebugEvents(t *testing.T) {
	repo := newEventRepository()
	value := 9.9
	user := evaluation.NewUser().StableRollout("u1")

	repo.add(NewCustomEvent("u1", "purchase", &value))
	repo.add(NewDebugEvent(user, "t1", true, uint64Ptr(1), intPtr(0), nil, "Default rule hit."))

	assert.Len(t, repo.Events, 2)
	assert.Empty(t, repo.Access.Counters)
	assert.False(t, repo.empty())
}

func TestEventRepositoryClear(t *testing.T) {
	repo := newEventRepository()
	repo.add(NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, true))

	repo.clear()

	assert.True(t, repo.empty())
}

func TestEventWireFormat(t *testing.T) {
	value := 1.0
	event := NewCustomEvent("user-1", "signup", &value)

	raw, err := json.Marshal(event)
	assert.NoError(t, err)

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "custom", decoded["kind"])
	assert.Equal(t, "user-1", decoded["user"])
	assert.Equal(t, "signup", decoded["name"])
	assert.NotEmpty(t, decoded["time"])
}

func TestAccessEventHidesTrackingFlagFromWire(t *testing.T) {
	event := NewAccessEvent("u1", "t1", true, uint64Ptr(1), intPtr(0), nil, true)

	raw, err := json.Marshal(event)
	assert.NoError(t, err)
	assert.NotContains(t, string(raw), "trackAccessEvents")
	assert.Contains(t, string(raw), `"kind":"access"`)
}
