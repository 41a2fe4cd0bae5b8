package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStatusStore(t *testing.T) *StatusStore {
	t.Helper()
	st, err := OpenStatusStore(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStatusStorePutGet(t *testing.T) {
	st := openTestStatusStore(t)

	_, found, err := st.Get(JobOnce)
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.Put(JobStatus{Name: JobOnce, Tag: TagPendingUpload, State: StateRunning, UpdatedAt: now}))
	require.NoError(t, st.Put(JobStatus{Name: JobOnce, Tag: TagPendingUpload, State: StateSucceeded, SyncedCount: 4, UpdatedAt: now}))

	got, found, err := st.Get(JobOnce)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, 4, got.SyncedCount)
	assert.True(t, now.Equal(got.UpdatedAt))
}

func TestStatusStoreByTag(t *testing.T) {
	st := openTestStatusStore(t)

	require.NoError(t, st.Put(JobStatus{Name: "b", Tag: TagPendingUpload, State: StateScheduled}))
	require.NoError(t, st.Put(JobStatus{Name: "a", Tag: TagPendingUpload, State: StateScheduled}))
	require.NoError(t, st.Put(JobStatus{Name: "c", Tag: "other", State: StateScheduled}))

	got, err := st.ByTag(TagPendingUpload)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

func TestStatusStorePrune(t *testing.T) {
	st := openTestStatusStore(t)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	require.NoError(t, st.Put(JobStatus{Name: "old-done", Tag: TagPendingUpload, State: StateSucceeded, UpdatedAt: old}))
	require.NoError(t, st.Put(JobStatus{Name: "old-running", Tag: TagPendingUpload, State: StateRunning, UpdatedAt: old}))
	require.NoError(t, st.Put(JobStatus{Name: "new-done", Tag: TagPendingUpload, State: StateFailed, UpdatedAt: recent}))

	n, err := st.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.ByTag(TagPendingUpload)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new-done", got[0].Name)
	assert.Equal(t, "old-running", got[1].Name)
}

func TestStateFinished(t *testing.T) {
	for _, s := range []State{StateSucceeded, StateFailed, StateCancelled} {
		assert.True(t, s.Finished(), s)
	}
	for _, s := range []State{StateScheduled, StateRunning, StateRetrying} {
		assert.False(t, s.Finished(), s)
	}
}
