// Package progress implements the observable state machine that drives the
// import progress UI. A Tracker owns a fixed ordered list of named stages and
// aggregate record counters; the orchestrator is its only writer, subscribers
// only ever see value snapshots.
package progress

import (
	"errors"
	"fmt"
	"sync"
)

// Status is the lifecycle state of one stage.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// DefaultStages is the standard import pipeline stage list, in run order.
var DefaultStages = []string{"parse", "clean", "validate", "dedupe", "upload"}

var (
	ErrStageIndex        = errors.New("stage index out of range")
	ErrTerminal          = errors.New("tracker is terminal, no further updates accepted")
	ErrCounterMismatch   = errors.New("processed must equal succeeded + failed")
	ErrPercentDecreasing = errors.New("stage percent must be non-decreasing")
)

// Stage is the externally visible state of one pipeline phase.
type Stage struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Percent int    `json:"percent"`
}

// Snapshot is a full copy of tracker state, safe to hand to subscribers and
// serialize for the progress endpoint.
type Snapshot struct {
	Stages           []Stage `json:"stages"`
	TotalRecords     int     `json:"total_records"`
	RecordsProcessed int     `json:"records_processed"`
	RecordsSucceeded int     `json:"records_succeeded"`
	RecordsFailed    int     `json:"records_failed"`
	Terminal         bool    `json:"terminal"`
}

// Subscriber receives a snapshot after every mutation. Notification is
// fire-and-forget on the mutating goroutine: a subscriber that blocks stalls
// the pipeline, so subscribers must hand work off and return.
type Subscriber func(Snapshot)

// Tracker enforces the stage lifecycle pending -> active -> complete|error.
// No stage re-enters a terminal state, stage percent is monotonic while
// active, and record counters must always satisfy
// processed == succeeded + failed.
type Tracker struct {
	mu        sync.Mutex
	stages    []Stage
	total     int
	processed int
	succeeded int
	failed    int
	terminal  bool
	subs      []Subscriber
}

// NewTracker creates a Tracker for the given expected record count. With no
// stage names, DefaultStages is used.
func NewTracker(totalRecords int, stageNames ...string) *Tracker {
	if len(stageNames) == 0 {
		stageNames = DefaultStages
	}
	stages := make([]Stage, len(stageNames))
	for i, name := range stageNames {
		stages[i] = Stage{Name: name, Status: StatusPending}
	}
	return &Tracker{stages: stages, total: totalRecords}
}

// Subscribe registers fn to receive snapshots. Multiple subscribers are
// supported; each receives its own copy.
func (t *Tracker) Subscribe(fn Subscriber) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	stages := make([]Stage, len(t.stages))
	copy(stages, t.stages)
	return Snapshot{
		Stages:           stages,
		TotalRecords:     t.total,
		RecordsProcessed: t.processed,
		RecordsSucceeded: t.succeeded,
		RecordsFailed:    t.failed,
		Terminal:         t.terminal,
	}
}

// StartStage moves a pending stage to active.
func (t *Tracker) StartStage(index int, message string) error {
	t.mu.Lock()
	if err := t.checkIndex(index); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.terminal {
		t.mu.Unlock()
		return ErrTerminal
	}
	s := &t.stages[index]
	if s.Status != StatusPending {
		t.mu.Unlock()
		return fmt.Errorf("stage %q: illegal transition %s -> active", s.Name, s.Status)
	}
	s.Status = StatusActive
	s.Message = message
	s.Percent = 0
	t.notifyLocked()
	return nil
}

// UpdateStageProgress reports percent completion for an active stage.
// Percent must be non-decreasing; values outside 0-100 are clamped.
func (t *Tracker) UpdateStageProgress(index, percent int, message string) error {
	t.mu.Lock()
	if err := t.checkIndex(index); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.terminal {
		t.mu.Unlock()
		return ErrTerminal
	}
	s := &t.stages[index]
	if s.Status != StatusActive {
		t.mu.Unlock()
		return fmt.Errorf("stage %q: progress update while %s", s.Name, s.Status)
	}
	if percent > 100 {
		percent = 100
	}
	if percent < s.Percent {
		t.mu.Unlock()
		return ErrPercentDecreasing
	}
	s.Percent = percent
	if message != "" {
		s.Message = message
	}
	t.notifyLocked()
	return nil
}

// CompleteStage ends an active stage successfully. The stage can never be
// re-entered afterwards.
func (t *Tracker) CompleteStage(index int, message string) error {
	return t.endStage(index, StatusComplete, message)
}

// ErrorStage ends an active stage in failure. The stage can never be
// re-entered afterwards.
func (t *Tracker) ErrorStage(index int, message string) error {
	return t.endStage(index, StatusError, message)
}

// endStage performs a terminal stage transition. These remain legal after the
// tracker itself turns terminal so the upload stage can record its own
// outcome after the final record-counter update.
func (t *Tracker) endStage(index int, status Status, message string) error {
	t.mu.Lock()
	if err := t.checkIndex(index); err != nil {
		t.mu.Unlock()
		return err
	}
	s := &t.stages[index]
	if s.Status != StatusActive {
		t.mu.Unlock()
		return fmt.Errorf("stage %q: illegal transition %s -> %s", s.Name, s.Status, status)
	}
	s.Status = status
	s.Message = message
	if status == StatusComplete {
		s.Percent = 100
	}
	t.notifyLocked()
	return nil
}

// UpdateRecordProgress sets the aggregate counters. The invariant
// processed == succeeded + failed is enforced on every call. Once every
// expected record is accounted for, the tracker becomes terminal and rejects
// further counter or progress updates.
func (t *Tracker) UpdateRecordProgress(processed, succeeded, failed int) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return ErrTerminal
	}
	if processed != succeeded+failed {
		t.mu.Unlock()
		return ErrCounterMismatch
	}
	t.processed = processed
	t.succeeded = succeeded
	t.failed = failed
	if t.total > 0 && succeeded+failed >= t.total {
		t.terminal = true
	}
	t.notifyLocked()
	return nil
}

func (t *Tracker) checkIndex(index int) error {
	if index < 0 || index >= len(t.stages) {
		return ErrStageIndex
	}
	return nil
}

// notifyLocked snapshots state, releases the lock, and fans out to
// subscribers. Each subscriber gets its own stages copy so none can observe
// another's mutations. Called with t.mu held; returns with it released.
func (t *Tracker) notifyLocked() {
	base := t.snapshotLocked()
	subs := make([]Subscriber, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()
	for _, fn := range subs {
		snap := base
		snap.Stages = make([]Stage, len(base.Stages))
		copy(snap.Stages, base.Stages)
		fn(snap)
	}
}

// StageIndex returns the index of the named stage, or -1.
func (t *Tracker) StageIndex(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}
