package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	"github.com/nicholsn/opencga/internal/common"
	"github.com/nicholsn/opencga/internal/scheduler/sge"
)

func TestCreateUserRejectsReservedPrincipals(t *testing.T) {
	f := newFixture(t)
	for _, reserved := range []string{"anonymous", "admin", "*"} {
		_, err := f.catalog.CreateUser(context.Background(), model.User{ID: reserved})
		assert.True(t, common.IsErrInvalidArgument(err), reserved)
	}
}

func TestCreateFileAutoCreatesParentFolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file, err := f.catalog.CreateFile(ctx, ownerUser, f.studyID, model.File{Path: "data/vcfs/chr1.vcf"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, file.Status.Name)
	assert.Equal(t, "chr1.vcf", file.Name)

	for _, parent := range []string{"data/", "data/vcfs/"} {
		folder, err := f.catalog.db.FindFileByPath(ctx, f.studyID, parent)
		require.NoError(t, err, parent)
		assert.Equal(t, model.FileTypeFolder, folder.Type)
		assert.Equal(t, model.StatusReady, folder.Status.Name)
	}

	// Re-registering the same path conflicts.
	_, err = f.catalog.CreateFile(ctx, ownerUser, f.studyID, model.File{Path: "data/vcfs/chr1.vcf"})
	assert.True(t, common.IsErrConflict(err))
}

func TestTrashFolderWalksSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file, err := f.catalog.CreateFile(ctx, ownerUser, f.studyID, model.File{Path: "data/chr1.vcf"})
	require.NoError(t, err)
	folder, err := f.catalog.db.FindFileByPath(ctx, f.studyID, "data/")
	require.NoError(t, err)

	require.NoError(t, f.catalog.TrashFile(ctx, ownerUser, folder.ID))

	trashed, err := f.catalog.db.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrashed, trashed.Status.Name)

	// Delete finishes the walk only after trash.
	require.NoError(t, f.catalog.DeleteFile(ctx, ownerUser, file.ID))
	deleted, err := f.catalog.db.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, deleted.Status.Name)
}

func TestDeleteRequiresTrashFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file, err := f.catalog.CreateFile(ctx, ownerUser, f.studyID, model.File{Path: "a.vcf"})
	require.NoError(t, err)
	err = f.catalog.DeleteFile(ctx, ownerUser, file.ID)
	assert.True(t, common.IsErrPrecondition(err))
}

func TestUnlinkExternalFileBecomesRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file, err := f.catalog.LinkFile(ctx, ownerUser, f.studyID, "external/b.vcf", "file:///tmp/b.vcf")
	require.NoError(t, err)
	require.NoError(t, f.catalog.TrashFile(ctx, ownerUser, file.ID))

	unlinked, err := f.catalog.db.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusRemoved, unlinked.Status.Name)
}

func TestOneGroupPerUserPerStudy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.catalog.CreateGroup(ctx, ownerUser, f.studyID, "analysts"))
	require.NoError(t, f.catalog.AddGroupMember(ctx, ownerUser, f.studyID, MembersGroup, aliceUser))

	err := f.catalog.AddGroupMember(ctx, ownerUser, f.studyID, "analysts", aliceUser)
	assert.True(t, common.IsErrConflict(err))

	require.NoError(t, f.catalog.RemoveGroupMember(ctx, ownerUser, f.studyID, MembersGroup, aliceUser))
	require.NoError(t, f.catalog.AddGroupMember(ctx, ownerUser, f.studyID, "analysts", aliceUser))
}

func TestCohortInvalidatedOnMemberChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.catalog.CreateSample(ctx, ownerUser, f.studyID, model.Sample{Name: "HG00096"})
	require.NoError(t, err)
	s2, err := f.catalog.CreateSample(ctx, ownerUser, f.studyID, model.Sample{Name: "HG00097"})
	require.NoError(t, err)

	cohort, err := f.catalog.CreateCohort(ctx, ownerUser, f.studyID, model.Cohort{Name: "ALL", SampleIDs: []int{s1.ID, s2.ID}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, cohort.Status.Name)

	updated, err := f.catalog.UpdateCohortSamples(ctx, ownerUser, cohort.ID, []int{s1.ID})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvalid, updated.Status.Name)

	validated, err := f.catalog.ValidateCohort(ctx, ownerUser, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, validated.Status.Name)
}

func TestDeleteSampleInvalidatesCohorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sample, err := f.catalog.CreateSample(ctx, ownerUser, f.studyID, model.Sample{Name: "HG00096"})
	require.NoError(t, err)
	cohort, err := f.catalog.CreateCohort(ctx, ownerUser, f.studyID, model.Cohort{Name: "ALL", SampleIDs: []int{sample.ID}})
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteSample(ctx, ownerUser, sample.ID))
	invalid, err := f.catalog.db.GetCohort(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvalid, invalid.Status.Name)
}

func TestCreateJobSubmitsWithSchedulerName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.catalog.CreateJob(ctx, ownerUser, f.studyID, model.Job{
		Name:        "index-1",
		ToolName:    "samtools",
		CommandLine: "samtools index chr1.bam",
	}, true)
	require.NoError(t, err)

	assert.Equal(t, sge.JobName("samtools", job.ID), job.SchedulerName)
	assert.Equal(t, model.JobStatusQueued, job.ExecutionStatus)
	assert.NotEmpty(t, job.OutDir)
	require.Len(t, f.scheduler.queued, 1)
	assert.Equal(t, job.SchedulerName, f.scheduler.queued[0])
}

func TestCreateJobWithoutEnqueueStaysPrepared(t *testing.T) {
	f := newFixture(t)

	job, err := f.catalog.CreateJob(context.Background(), ownerUser, f.studyID, model.Job{Name: "j", ToolName: "t"}, false)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPrepared, job.ExecutionStatus)
	assert.Empty(t, f.scheduler.queued)
}

func TestVisitJobFlipsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.catalog.CreateJob(ctx, ownerUser, f.studyID, model.Job{Name: "j", ToolName: "t"}, false)
	require.NoError(t, err)
	assert.False(t, job.Visited)

	visited, err := f.catalog.VisitJob(ctx, ownerUser, job.ID)
	require.NoError(t, err)
	assert.True(t, visited.Visited)

	again, err := f.catalog.VisitJob(ctx, ownerUser, job.ID)
	require.NoError(t, err)
	assert.True(t, again.Visited)
}

func TestRefreshJobStatusReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.catalog.CreateJob(ctx, ownerUser, f.studyID, model.Job{Name: "j", ToolName: "t"}, true)
	require.NoError(t, err)

	f.scheduler.status = sge.StatusRunning
	refreshed, err := f.catalog.RefreshJobStatus(ctx, ownerUser, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, refreshed.ExecutionStatus)

	f.scheduler.status = sge.StatusExecutionError
	refreshed, err = f.catalog.RefreshJobStatus(ctx, ownerUser, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, refreshed.ExecutionStatus)

	// UNKNOWN leaves the stored status alone.
	f.scheduler.status = sge.StatusUnknown
	refreshed, err = f.catalog.RefreshJobStatus(ctx, ownerUser, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, refreshed.ExecutionStatus)
}

func TestSearchJobsFiltersByPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreateJob(ctx, ownerUser, f.studyID, model.Job{Name: "j", ToolName: "t"}, false)
	require.NoError(t, err)

	jobs, err := f.catalog.SearchJobs(ctx, bobUser, f.studyID, persistence.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	f.grantStudy(t, bobUser, "VIEW_JOBS")
	jobs, err = f.catalog.SearchJobs(ctx, bobUser, f.studyID, persistence.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestCreateJobDeniedWithoutPermission(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.CreateJob(context.Background(), bobUser, f.studyID, model.Job{Name: "j", ToolName: "t"}, false)
	assert.True(t, common.IsErrPermissionDenied(err))
}
