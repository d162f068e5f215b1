package metadata

import (
	"github.com/nicholsn/opencga/internal/common"
)

// FileMetadata is what the loader knows about a file before admission: the
// catalog file id, its name, and the declared sample names in file order.
type FileMetadata struct {
	ID          int
	Name        string
	SampleNames []string
}

// CheckAndUpdateStudyConfiguration validates a file against the study
// configuration and registers its samples. sampleMapping carries explicit
// sample-name→id assignments; when empty, ids are auto-assigned with the
// priority: the sample's position in the file if free and nonzero, else the
// current sample count if free and nonzero, else max(existing)+1. Id 0 is
// never auto-assigned: it would be indistinguishable from an absent bimap
// entry.
func CheckAndUpdateStudyConfiguration(sc *StudyConfiguration, file FileMetadata, sampleMapping map[string]int) error {
	if len(sampleMapping) > 0 {
		if err := checkExplicitMapping(sc, file, sampleMapping); err != nil {
			return err
		}
		for name, id := range sampleMapping {
			sc.SampleIDs[name] = id
		}
	}

	usedIDs := make(map[int]bool, len(sc.SampleIDs))
	for _, id := range sc.SampleIDs {
		usedIDs[id] = true
	}
	maxID := 0
	for _, id := range sc.SampleIDs {
		if id > maxID {
			maxID = id
		}
	}
	for position, name := range file.SampleNames {
		if _, ok := sc.SampleIDs[name]; ok {
			continue
		}
		var id int
		size := len(sc.SampleIDs)
		switch {
		case position != 0 && !usedIDs[position]:
			id = position
		case size != 0 && !usedIDs[size]:
			id = size
		default:
			maxID++
			id = maxID
		}
		sc.SampleIDs[name] = id
		usedIDs[id] = true
		if id > maxID {
			maxID = id
		}
	}

	if err := checkSamplesInFile(sc, file); err != nil {
		return err
	}
	return CheckNewFile(sc, file.ID, file.Name)
}

// checkExplicitMapping validates caller-supplied sample-name→id pairs:
// every name must appear in the file, and neither side of the bimap may be
// remapped.
func checkExplicitMapping(sc *StudyConfiguration, file FileMetadata, mapping map[string]int) error {
	inFile := make(map[string]bool, len(file.SampleNames))
	for _, name := range file.SampleNames {
		inFile[name] = true
	}
	names := invertIDs(sc.SampleIDs)
	for name, id := range mapping {
		if !inFile[name] {
			return common.NewErrInvalidArgument("sample '%s' is mapped but does not appear in file '%s'", name, file.Name)
		}
		if existing, ok := sc.SampleIDs[name]; ok && existing != id {
			return common.NewErrInvalidArgument("sample '%s' is already registered with id %d, cannot remap to %d", name, existing, id)
		}
		if existing, ok := names[id]; ok && existing != name {
			return common.NewErrInvalidArgument("sample id %d is already taken by '%s'", id, existing)
		}
	}
	return nil
}

// checkSamplesInFile verifies samples_in_file[file] equals the file's
// declared sample set exactly, writing it when absent.
func checkSamplesInFile(sc *StudyConfiguration, file FileMetadata) error {
	declared := make([]int, 0, len(file.SampleNames))
	declaredSet := make(map[int]bool, len(file.SampleNames))
	for _, name := range file.SampleNames {
		id := sc.SampleIDs[name]
		declared = append(declared, id)
		declaredSet[id] = true
	}

	existing, ok := sc.SamplesInFiles[file.ID]
	if !ok {
		sc.SamplesInFiles[file.ID] = declared
		return nil
	}
	if len(existing) != len(declaredSet) {
		return common.NewErrPrecondition("file '%s' was registered with %d samples but declares %d", file.Name, len(existing), len(declaredSet))
	}
	for _, id := range existing {
		if !declaredSet[id] {
			return common.NewErrPrecondition("file '%s' was registered with sample id %d which the file does not declare", file.Name, id)
		}
	}
	return nil
}

// CheckNewFile records the file in the name↔id bimap. It fails when the
// name already maps to a different id, the id already maps to a different
// name, or the id is already indexed.
func CheckNewFile(sc *StudyConfiguration, fileID int, fileName string) error {
	if existing, ok := sc.FileIDs[fileName]; ok && existing != fileID {
		return common.NewErrPrecondition("file name '%s' already maps to id %d", fileName, existing)
	}
	names := invertIDs(sc.FileIDs)
	if existing, ok := names[fileID]; ok && existing != fileName {
		return common.NewErrPrecondition("file id %d already maps to name '%s'", fileID, existing)
	}
	if sc.IndexedFiles[fileID] {
		return common.NewErrPrecondition("file '%s' (id %d) is already indexed", fileName, fileID)
	}
	sc.FileIDs[fileName] = fileID
	return nil
}
