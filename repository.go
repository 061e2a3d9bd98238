package featureprobe

import (
	"sync"
	"sync/atomic"

	"github.com/featureprobe/featureprobe-go-client/evaluation"
)

// DataRepository holds exactly one live ruleset snapshot. Refresh swaps the
// snapshot and the initialized flag together under the writer lock; readers
// take no lock at all and see either the previous fully-formed snapshot or
// the new one, never a mix.
type DataRepository struct {
	mu          sync.Mutex
	data        atomic.Pointer[evaluation.Repository]
	initialized atomic.Bool
}

// Refresh publishes a new snapshot. A nil or malformed repository is a no-op:
// a failed fetch must never erase a good cache. A snapshot carrying neither a
// toggle map nor a segment map never decoded actual ruleset data; an empty
// ruleset on the wire still has both maps present.
func (r *DataRepository) Refresh(repo *evaluation.Repository) {
	if repo == nil || (repo.Toggles == nil && repo.Segments == nil) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Store(&evaluation.Repository{
		Toggles:        repo.Toggles,
		Segments:       repo.Segments,
		DebugUntilTime: repo.DebugUntilTime,
	})
	r.initialized.Store(true)
}

// Initialized reports whether a snapshot has ever been published.
func (r *DataRepository) Initialized() bool {
	return r.initialized.Load()
}

// Toggles returns the current toggle set, empty before initialization.
func (r *DataRepository) Toggles() map[string]*evaluation.Toggle {
	if data := r.snapshot(); data != nil && data.Toggles != nil {
		return data.Toggles
	}
	return map[string]*evaluation.Toggle{}
}

// Segments returns the current segment set, empty before initialization.
func (r *DataRepository) Segments() map[string]*evaluation.Segment {
	if data := r.snapshot(); data != nil && data.Segments != nil {
		return data.Segments
	}
	return map[string]*evaluation.Segment{}
}

func (r *DataRepository) GetToggle(key string) (*evaluation.Toggle, bool) {
	if data := r.snapshot(); data != nil {
		toggle, ok := data.Toggles[key]
		return toggle, ok
	}
	return nil, false
}

func (r *DataRepository) GetSegment(key string) (*evaluation.Segment, bool) {
	if data := r.snapshot(); data != nil {
		segment, ok := data.Segments[key]
		return segment, ok
	}
	return nil, false
}

// DebugUntilTime returns the debug-event deadline in epoch milliseconds, or 0
// when none is set.
func (r *DataRepository) DebugUntilTime() int64 {
	if data := r.snapshot(); data != nil && data.DebugUntilTime != nil {
		return *data.DebugUntilTime
	}
	return 0
}

// Close clears the cached snapshot and marks the repository uninitialized.
func (r *DataRepository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Store(nil)
	r.initialized.Store(false)
}

func (r *DataRepository) snapshot() *evaluation.Repository {
	if !r.initialized.Load() {
		return nil
	}
	return r.data.Load()
}
