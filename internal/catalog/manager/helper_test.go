package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/catalog/authorization"
	catalogio "github.com/nicholsn/opencga/internal/catalog/io"
	"github.com/nicholsn/opencga/internal/catalog/model"
	persistence_inmemory "github.com/nicholsn/opencga/internal/catalog/persistence/inmemory"
	"github.com/nicholsn/opencga/internal/scheduler/sge"
	metadata_inmemory "github.com/nicholsn/opencga/internal/storage/metadata/inmemory"
)

const (
	testOffset = 150000
	ownerUser  = "owner"
	aliceUser  = "alice"
	bobUser    = "bob"
)

// fakeScheduler records submissions and replays a scripted status.
type fakeScheduler struct {
	queued []string
	status sge.Status
	err    error
}

func (f *fakeScheduler) Queue(ctx context.Context, tool string, jobID int, outDir, commandLine, queue string) error {
	f.queued = append(f.queued, sge.JobName(tool, jobID))
	return f.err
}

func (f *fakeScheduler) Status(ctx context.Context, tool string, jobID int) (sge.Status, error) {
	return f.status, f.err
}

type fixture struct {
	catalog   *Catalog
	auth      *authorization.Manager
	scheduler *fakeScheduler
	projectID int
	studyID   int
}

// newFixture builds a catalog over the in-memory backends with one owner,
// two plain users, a project and a study.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := persistence_inmemory.NewInMemoryCatalogDatabase(testOffset)
	locker := metadata_inmemory.NewInMemoryMetadataAdaptor()
	auth := authorization.NewManager(db, locker, 2*time.Second, time.Second)

	ioManager, err := catalogio.NewPosixManager(t.TempDir())
	require.NoError(t, err)
	scheduler := &fakeScheduler{status: sge.StatusRunning}
	catalog := NewCatalog(db, auth, ioManager, testOffset, WithScheduler(scheduler))

	for _, userID := range []string{ownerUser, aliceUser, bobUser} {
		_, err := catalog.CreateUser(ctx, model.User{ID: userID, Name: userID})
		require.NoError(t, err)
	}
	project, err := catalog.CreateProject(ctx, ownerUser, model.Project{Alias: "1000g", Name: "1000 Genomes"})
	require.NoError(t, err)
	study, err := catalog.CreateStudy(ctx, ownerUser, project.ID, model.Study{Alias: "phase1", Name: "Phase 1"})
	require.NoError(t, err)

	return &fixture{
		catalog:   catalog,
		auth:      auth,
		scheduler: scheduler,
		projectID: project.ID,
		studyID:   study.ID,
	}
}

// grantStudy gives a member study-level permissions through the mutator.
func (f *fixture) grantStudy(t *testing.T, member string, permissions ...string) {
	t.Helper()
	_, err := f.auth.CreateStudyAcls(context.Background(), ownerUser, f.studyID, []string{member}, permissions, "")
	require.NoError(t, err)
}
