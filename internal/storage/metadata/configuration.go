// Package metadata implements the concurrency-controlled study
// configuration store: the per-study document, the distributed lock
// protocol, the dual-keyed process cache, the batch-operation state machine
// and the file/sample admission checks run before loading a file.
package metadata

import (
	"github.com/nicholsn/opencga/internal/catalog/model"
)

// StudyConfiguration is the versioned per-study document. The name↔id maps
// are bimaps: both directions stay unique, enforced by the admission
// checks. Timestamp is monotonic and set by the adaptor on every write.
type StudyConfiguration struct {
	ID              int                 `bson:"id" json:"id"`
	Name            string              `bson:"name" json:"name"`
	AggregationType string              `bson:"aggregationType,omitempty" json:"aggregationType,omitempty"`
	SampleIDs       map[string]int      `bson:"sampleIds" json:"sampleIds"`
	FileIDs         map[string]int      `bson:"fileIds" json:"fileIds"`
	CohortIDs       map[string]int      `bson:"cohortIds" json:"cohortIds"`
	IndexedFiles    map[int]bool        `bson:"indexedFiles" json:"indexedFiles"`
	SamplesInFiles  map[int][]int       `bson:"samplesInFiles" json:"samplesInFiles"`
	VariableSets    []model.VariableSet `bson:"variableSets,omitempty" json:"variableSets,omitempty"`
	Batches         []BatchOperation    `bson:"batches" json:"batches"`
	Timestamp       int64               `bson:"timestamp" json:"timestamp"`
}

// NewStudyConfiguration creates an empty configuration for a study.
func NewStudyConfiguration(id int, name string) *StudyConfiguration {
	return &StudyConfiguration{
		ID:             id,
		Name:           name,
		SampleIDs:      make(map[string]int),
		FileIDs:        make(map[string]int),
		CohortIDs:      make(map[string]int),
		IndexedFiles:   make(map[int]bool),
		SamplesInFiles: make(map[int][]int),
	}
}

// Copy returns a deep copy. Cached configurations are copied on read so
// that callers can never mutate the cache behind the manager's back.
func (sc *StudyConfiguration) Copy() *StudyConfiguration {
	if sc == nil {
		return nil
	}
	out := &StudyConfiguration{
		ID:              sc.ID,
		Name:            sc.Name,
		AggregationType: sc.AggregationType,
		SampleIDs:       copyIntMap(sc.SampleIDs),
		FileIDs:         copyIntMap(sc.FileIDs),
		CohortIDs:       copyIntMap(sc.CohortIDs),
		IndexedFiles:    make(map[int]bool, len(sc.IndexedFiles)),
		SamplesInFiles:  make(map[int][]int, len(sc.SamplesInFiles)),
		Timestamp:       sc.Timestamp,
	}
	for id, indexed := range sc.IndexedFiles {
		out.IndexedFiles[id] = indexed
	}
	for fileID, samples := range sc.SamplesInFiles {
		out.SamplesInFiles[fileID] = append([]int(nil), samples...)
	}
	if sc.VariableSets != nil {
		out.VariableSets = append([]model.VariableSet(nil), sc.VariableSets...)
	}
	if sc.Batches != nil {
		out.Batches = make([]BatchOperation, len(sc.Batches))
		for i, op := range sc.Batches {
			out.Batches[i] = op.copy()
		}
	}
	return out
}

func copyIntMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// invertIDs returns the id→name view of a bimap.
func invertIDs(in map[string]int) map[int]string {
	out := make(map[int]string, len(in))
	for name, id := range in {
		out[id] = name
	}
	return out
}
