package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/common"
)

func TestAutoAssignNeverUsesIDZero(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")

	// Id 0 aliases the zero value of the bimap, so an empty study loading
	// three samples starts at 1.
	err := CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0", "s1", "s2"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"s0": 1, "s1": 2, "s2": 3}, sc.SampleIDs)
	assert.ElementsMatch(t, []int{1, 2, 3}, sc.SamplesInFiles[10])
}

func TestAutoAssignPrefersFilePosition(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	sc.SampleIDs["other"] = 5

	// The new sample sits at position 1 of the file and id 1 is free.
	err := CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"other", "s1"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.SampleIDs["s1"])
}

func TestAutoAssignFallsBackToSampleCount(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	// The first sample's file position is 0 and never assignable, so it
	// falls back to the current sample count.
	sc.SampleIDs["other"] = 3

	err := CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.SampleIDs["s0"])
}

func TestAutoAssignFallsBackToMaxPlusOne(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	// The file position is 0 and the count slot is taken; max+1 wins.
	sc.SampleIDs["a"] = 1
	sc.SampleIDs["b"] = 2

	err := CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, sc.SampleIDs["s0"])
}

func TestExistingSamplesKeepTheirIDs(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	require.NoError(t, CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0", "s1"}}, nil))

	require.NoError(t, CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 11, Name: "b.vcf", SampleNames: []string{"s1", "s2"}}, nil))
	assert.Equal(t, 2, sc.SampleIDs["s1"])
	assert.ElementsMatch(t, []int{2, sc.SampleIDs["s2"]}, sc.SamplesInFiles[11])
}

func TestExplicitMappingValidation(t *testing.T) {
	file := FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0", "s1"}}

	t.Run("AcceptsWellFormed", func(t *testing.T) {
		sc := NewStudyConfiguration(1, "phase1")
		err := CheckAndUpdateStudyConfiguration(sc, file, map[string]int{"s0": 7, "s1": 9})
		require.NoError(t, err)
		assert.Equal(t, 7, sc.SampleIDs["s0"])
		assert.Equal(t, 9, sc.SampleIDs["s1"])
	})

	t.Run("RejectsSampleNotInFile", func(t *testing.T) {
		sc := NewStudyConfiguration(1, "phase1")
		err := CheckAndUpdateStudyConfiguration(sc, file, map[string]int{"stranger": 7})
		assert.True(t, common.IsErrInvalidArgument(err))
	})

	t.Run("RejectsRemapOfExistingName", func(t *testing.T) {
		sc := NewStudyConfiguration(1, "phase1")
		sc.SampleIDs["s0"] = 3
		err := CheckAndUpdateStudyConfiguration(sc, file, map[string]int{"s0": 7})
		assert.True(t, common.IsErrInvalidArgument(err))
	})

	t.Run("RejectsTakenID", func(t *testing.T) {
		sc := NewStudyConfiguration(1, "phase1")
		sc.SampleIDs["other"] = 7
		err := CheckAndUpdateStudyConfiguration(sc, file, map[string]int{"s0": 7})
		assert.True(t, common.IsErrInvalidArgument(err))
	})
}

func TestSamplesInFileExactness(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	file := FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0", "s1"}}
	require.NoError(t, CheckAndUpdateStudyConfiguration(sc, file, nil))

	// Same file, same samples: fine.
	require.NoError(t, CheckAndUpdateStudyConfiguration(sc, file, nil))

	// The registered set must match the declared set exactly.
	err := CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0"}}, nil)
	assert.True(t, common.IsErrPrecondition(err), "omission must fail")

	err = CheckAndUpdateStudyConfiguration(sc, FileMetadata{ID: 10, Name: "a.vcf", SampleNames: []string{"s0", "s1", "s2"}}, nil)
	assert.True(t, common.IsErrPrecondition(err), "extras must fail")
}

func TestCheckNewFileBimapConflicts(t *testing.T) {
	sc := NewStudyConfiguration(1, "phase1")
	require.NoError(t, CheckNewFile(sc, 10, "a.vcf"))

	// Re-registering the same pair is idempotent.
	require.NoError(t, CheckNewFile(sc, 10, "a.vcf"))

	err := CheckNewFile(sc, 11, "a.vcf")
	assert.True(t, common.IsErrPrecondition(err), "name bound to another id")

	err = CheckNewFile(sc, 10, "b.vcf")
	assert.True(t, common.IsErrPrecondition(err), "id bound to another name")

	sc.IndexedFiles[12] = true
	err = CheckNewFile(sc, 12, "c.vcf")
	assert.True(t, common.IsErrPrecondition(err), "indexed ids are closed")
}
