package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/common"
)

func allowAll(op BatchOperation) bool  { return true }
func allowNone(op BatchOperation) bool { return false }

func TestBatchAdmissionFreshOperation(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")

	op, err := sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD"})
	require.NoError(t, err)
	assert.Equal(t, OperationRunning, op.CurrentStatus())
	require.Len(t, sc.Batches, 1)
}

func TestBatchAdmissionSameOperationRunning(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	_, err := sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD"})
	require.NoError(t, err)

	_, err = sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD"})
	require.Error(t, err)
	assert.True(t, common.IsErrConflict(err))
	assert.Len(t, sc.Batches, 1, "rejected admission must not append")
}

func TestBatchAdmissionResumeFromError(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	op, err := sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD"})
	require.NoError(t, err)
	op.AddStatus(OperationError)

	// A failed run is reused even without the resume flag: re-submitting the
	// same triple picks up the record instead of conflicting.
	resumed, err := sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD"})
	require.NoError(t, err)
	assert.Equal(t, OperationRunning, resumed.CurrentStatus())
	require.Len(t, sc.Batches, 1, "reuse must not create a second record")
	assert.Equal(t, []OperationStatus{OperationRunning, OperationError, OperationRunning}, statuses(sc.Batches[0]))

	// With the flag set the behavior is identical.
	sc.Batches[0].AddStatus(OperationError)
	resumed, err = sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD", Resume: true})
	require.NoError(t, err)
	assert.Equal(t, OperationRunning, resumed.CurrentStatus())
	require.Len(t, sc.Batches, 1)
}

func TestBatchAdmissionConcurrencyPredicate(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	_, err := sc.AddBatchOperation(OperationRequest{Name: "index", FileIDs: []int{1}, Type: "LOAD"})
	require.NoError(t, err)

	// A different operation is arbitrated by the predicate.
	_, err = sc.AddBatchOperation(OperationRequest{Name: "annotate", FileIDs: []int{2}, Type: "ANNOTATE", AllowConcurrent: allowNone})
	assert.True(t, common.IsErrConflict(err))

	op, err := sc.AddBatchOperation(OperationRequest{Name: "annotate", FileIDs: []int{2}, Type: "ANNOTATE", AllowConcurrent: allowAll})
	require.NoError(t, err)
	assert.Equal(t, OperationRunning, op.CurrentStatus())

	// Nil predicate forbids all concurrency.
	_, err = sc.AddBatchOperation(OperationRequest{Name: "stats", FileIDs: []int{3}, Type: "STATS"})
	assert.True(t, common.IsErrConflict(err))
}

func TestBatchAdmissionErrorOfDifferentOperation(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	op, err := sc.AddBatchOperation(OperationRequest{Name: "index", FileIDs: []int{1}, Type: "LOAD"})
	require.NoError(t, err)
	op.AddStatus(OperationError)

	_, err = sc.AddBatchOperation(OperationRequest{Name: "annotate", FileIDs: []int{2}, Type: "ANNOTATE", AllowConcurrent: allowNone})
	assert.True(t, common.IsErrConflict(err))

	_, err = sc.AddBatchOperation(OperationRequest{Name: "annotate", FileIDs: []int{2}, Type: "ANNOTATE", AllowConcurrent: allowAll})
	require.NoError(t, err)
}

func TestBatchAdmissionDoneOperation(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	op, err := sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1}, Type: "LOAD"})
	require.NoError(t, err)
	op.AddStatus(OperationDone)

	// Re-submitting a finished operation without resume is rejected.
	_, err = sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1}, Type: "LOAD"})
	assert.True(t, common.IsErrConflict(err))

	// Resuming a finished run hands back the existing record untouched:
	// no new record, no RUNNING appended to a DONE history.
	existing, err := sc.AddBatchOperation(OperationRequest{Name: "load", FileIDs: []int{1}, Type: "LOAD", Resume: true})
	require.NoError(t, err)
	assert.Equal(t, OperationDone, existing.CurrentStatus())
	require.Len(t, sc.Batches, 1)
	assert.Equal(t, []OperationStatus{OperationRunning, OperationDone}, statuses(sc.Batches[0]))
}

func TestBatchSameOperationIdentity(t *testing.T) {
	op := BatchOperation{Name: "load", FileIDs: []int{1, 2}, Type: "LOAD"}

	assert.True(t, op.Same("load", []int{1, 2}, "LOAD"))
	assert.False(t, op.Same("load", []int{2, 1}, "LOAD"), "file order is part of the identity")
	assert.False(t, op.Same("load", []int{1}, "LOAD"))
	assert.False(t, op.Same("load", []int{1, 2}, "REMOVE"))
	assert.False(t, op.Same("reload", []int{1, 2}, "LOAD"))
}

func statuses(op BatchOperation) []OperationStatus {
	out := make([]OperationStatus, len(op.History))
	for i, h := range op.History {
		out[i] = h.Status
	}
	return out
}
