package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStageLifecycle(t *testing.T) {
	tr := NewTracker(10, "parse", "clean")

	snap := tr.Snapshot()
	require.Len(t, snap.Stages, 2)
	assert.Equal(t, StatusPending, snap.Stages[0].Status)

	require.NoError(t, tr.StartStage(0, "parsing"))
	require.NoError(t, tr.UpdateStageProgress(0, 50, ""))
	require.NoError(t, tr.CompleteStage(0, "done"))

	snap = tr.Snapshot()
	assert.Equal(t, StatusComplete, snap.Stages[0].Status)
	assert.Equal(t, 100, snap.Stages[0].Percent)
	assert.Equal(t, StatusPending, snap.Stages[1].Status)
}

func TestTrackerDefaultStages(t *testing.T) {
	tr := NewTracker(0)
	snap := tr.Snapshot()
	require.Len(t, snap.Stages, len(DefaultStages))
	assert.Equal(t, "upload", snap.Stages[len(snap.Stages)-1].Name)
	assert.Equal(t, 3, tr.StageIndex("dedupe"))
	assert.Equal(t, -1, tr.StageIndex("nope"))
}

func TestTrackerIllegalTransitions(t *testing.T) {
	tr := NewTracker(10, "parse", "clean")

	// Cannot complete or update a stage that never started
	assert.Error(t, tr.CompleteStage(0, ""))
	assert.Error(t, tr.UpdateStageProgress(0, 10, ""))

	require.NoError(t, tr.StartStage(0, ""))
	require.NoError(t, tr.CompleteStage(0, ""))

	// Terminal stages never re-enter
	assert.Error(t, tr.StartStage(0, ""))
	assert.Error(t, tr.CompleteStage(0, ""))
	assert.Error(t, tr.UpdateStageProgress(0, 10, ""))

	assert.ErrorIs(t, tr.StartStage(5, ""), ErrStageIndex)
	assert.ErrorIs(t, tr.StartStage(-1, ""), ErrStageIndex)
}

func TestTrackerMonotonicPercent(t *testing.T) {
	tr := NewTracker(10, "parse")
	require.NoError(t, tr.StartStage(0, ""))
	require.NoError(t, tr.UpdateStageProgress(0, 40, ""))

	assert.ErrorIs(t, tr.UpdateStageProgress(0, 30, ""), ErrPercentDecreasing)

	// Values above 100 clamp instead of erroring
	require.NoError(t, tr.UpdateStageProgress(0, 150, ""))
	assert.Equal(t, 100, tr.Snapshot().Stages[0].Percent)
}

func TestTrackerCounterInvariant(t *testing.T) {
	tr := NewTracker(100)

	assert.ErrorIs(t, tr.UpdateRecordProgress(10, 5, 4), ErrCounterMismatch)

	require.NoError(t, tr.UpdateRecordProgress(50, 45, 5))
	snap := tr.Snapshot()
	assert.Equal(t, 50, snap.RecordsProcessed)
	assert.Equal(t, 45, snap.RecordsSucceeded)
	assert.Equal(t, 5, snap.RecordsFailed)
	assert.False(t, snap.Terminal)
}

func TestTrackerTerminal(t *testing.T) {
	tr := NewTracker(100, "upload")
	require.NoError(t, tr.StartStage(0, ""))
	require.NoError(t, tr.UpdateRecordProgress(100, 90, 10))

	snap := tr.Snapshot()
	assert.True(t, snap.Terminal)

	// Counter and progress updates are rejected after terminal
	assert.ErrorIs(t, tr.UpdateRecordProgress(100, 90, 10), ErrTerminal)
	assert.ErrorIs(t, tr.UpdateStageProgress(0, 100, ""), ErrTerminal)

	// But the active stage may still record its outcome
	require.NoError(t, tr.ErrorStage(0, "completed with 10 failures"))
	assert.Equal(t, StatusError, tr.Snapshot().Stages[0].Status)
}

func TestTrackerSubscribers(t *testing.T) {
	tr := NewTracker(120, "upload")

	var seen []Snapshot
	tr.Subscribe(func(s Snapshot) { seen = append(seen, s) })

	require.NoError(t, tr.StartStage(0, "uploading"))
	require.NoError(t, tr.UpdateRecordProgress(50, 50, 0))
	require.NoError(t, tr.UpdateRecordProgress(100, 100, 0))
	require.NoError(t, tr.UpdateRecordProgress(120, 120, 0))
	require.NoError(t, tr.CompleteStage(0, "done"))

	require.Len(t, seen, 5)

	// Every snapshot a subscriber ever sees satisfies the counter invariant
	// and processed never decreases across notifications.
	prev := 0
	for _, s := range seen {
		assert.Equal(t, s.RecordsProcessed, s.RecordsSucceeded+s.RecordsFailed)
		assert.GreaterOrEqual(t, s.RecordsProcessed, prev)
		prev = s.RecordsProcessed
	}
	last := seen[len(seen)-1]
	assert.True(t, last.Terminal)
	assert.Equal(t, StatusComplete, last.Stages[0].Status)
}

// A subscriber that mutates the snapshot it received must not affect the
// tracker or other subscribers.
func TestTrackerSnapshotIsolation(t *testing.T) {
	tr := NewTracker(10, "parse")

	var second Snapshot
	tr.Subscribe(func(s Snapshot) { s.Stages[0].Name = "mutated" })
	tr.Subscribe(func(s Snapshot) { second = s })

	require.NoError(t, tr.StartStage(0, ""))
	assert.Equal(t, "parse", tr.Snapshot().Stages[0].Name)
	assert.Equal(t, "parse", second.Stages[0].Name)
}
