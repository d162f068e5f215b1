package metadata

import (
	"time"

	"github.com/nicholsn/opencga/internal/common"
)

// OperationStatus is one state of a batch operation.
type OperationStatus string

const (
	OperationReady   OperationStatus = "READY"
	OperationRunning OperationStatus = "RUNNING"
	OperationDone    OperationStatus = "DONE"
	OperationError   OperationStatus = "ERROR"
)

// StatusEntry is one step of an operation's chronologically ordered status
// history.
type StatusEntry struct {
	Status OperationStatus `bson:"status" json:"status"`
	Date   int64           `bson:"date" json:"date"`
}

// BatchOperation is a named, typed unit of work over a file set. The status
// history is append-only; the last entry is the current state.
type BatchOperation struct {
	Name    string        `bson:"name" json:"name"`
	FileIDs []int         `bson:"fileIds" json:"fileIds"`
	Type    string        `bson:"type" json:"type"`
	Created int64         `bson:"created" json:"created"`
	History []StatusEntry `bson:"history" json:"history"`
}

func (op *BatchOperation) copy() BatchOperation {
	out := *op
	out.FileIDs = append([]int(nil), op.FileIDs...)
	out.History = append([]StatusEntry(nil), op.History...)
	return out
}

// CurrentStatus returns the last status in the history, READY when the
// operation never started.
func (op *BatchOperation) CurrentStatus() OperationStatus {
	if len(op.History) == 0 {
		return OperationReady
	}
	return op.History[len(op.History)-1].Status
}

// AddStatus appends a transition with the current time.
func (op *BatchOperation) AddStatus(status OperationStatus) {
	op.History = append(op.History, StatusEntry{Status: status, Date: time.Now().UnixMilli()})
}

// Same reports whether the operation is the (name, files, type) triple.
// File order matters: the triple identifies one concrete submission.
func (op *BatchOperation) Same(name string, fileIDs []int, opType string) bool {
	if op.Name != name || op.Type != opType || len(op.FileIDs) != len(fileIDs) {
		return false
	}
	for i := range fileIDs {
		if op.FileIDs[i] != fileIDs[i] {
			return false
		}
	}
	return true
}

// OperationRequest asks for admission of a batch operation on a study. The
// AllowConcurrent predicate arbitrates against unrelated in-flight
// operations, enabling e.g. concurrent annotation loads while forbidding
// concurrent variant indexing. A nil predicate forbids all concurrency.
type OperationRequest struct {
	Name            string
	FileIDs         []int
	Type            string
	Resume          bool
	AllowConcurrent func(op BatchOperation) bool
}

// AddBatchOperation runs the admission state machine and, on success,
// returns the current operation: either a brand new RUNNING record appended
// to the history or a reused existing record.
//
// Admission rules:
//   - same operation RUNNING or DONE without resume fails with
//     "current operation in progress";
//   - a different operation that is RUNNING, DONE or ERROR is arbitrated by
//     AllowConcurrent;
//   - same operation in ERROR always reuses the failed record and re-enters
//     RUNNING, with or without the resume flag;
//   - same operation DONE with resume returns the finished record unchanged.
func (sc *StudyConfiguration) AddBatchOperation(req OperationRequest) (*BatchOperation, error) {
	var resumeTarget *BatchOperation
	for i := range sc.Batches {
		op := &sc.Batches[i]
		same := op.Same(req.Name, req.FileIDs, req.Type)
		status := op.CurrentStatus()
		if status == OperationReady {
			// Never started, nothing to arbitrate.
			continue
		}
		if (status == OperationRunning || status == OperationDone) && !req.Resume {
			if same {
				return nil, common.NewErrConflict("operation '%s' is already in progress for study %d", req.Name, sc.ID)
			}
			if req.AllowConcurrent == nil || !req.AllowConcurrent(*op) {
				return nil, common.NewErrConflict("another operation '%s' is in progress for study %d", op.Name, sc.ID)
			}
			continue
		}
		// ERROR, or a RUNNING/DONE record under resume.
		if same {
			resumeTarget = op
			continue
		}
		if req.AllowConcurrent == nil || !req.AllowConcurrent(*op) {
			return nil, common.NewErrConflict("another operation '%s' is in progress for study %d", op.Name, sc.ID)
		}
	}

	if resumeTarget != nil {
		if resumeTarget.CurrentStatus() != OperationDone {
			resumeTarget.AddStatus(OperationRunning)
		}
		return resumeTarget, nil
	}

	op := BatchOperation{
		Name:    req.Name,
		FileIDs: append([]int(nil), req.FileIDs...),
		Type:    req.Type,
		Created: time.Now().UnixMilli(),
	}
	op.AddStatus(OperationRunning)
	sc.Batches = append(sc.Batches, op)
	return &sc.Batches[len(sc.Batches)-1], nil
}

// FindBatchOperation locates an operation by its identifying triple.
func (sc *StudyConfiguration) FindBatchOperation(name string, fileIDs []int, opType string) *BatchOperation {
	for i := range sc.Batches {
		if sc.Batches[i].Same(name, fileIDs, opType) {
			return &sc.Batches[i]
		}
	}
	return nil
}
