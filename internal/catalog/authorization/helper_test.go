package authorization

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	persistence_inmemory "github.com/nicholsn/opencga/internal/catalog/persistence/inmemory"
)

// fakeLocker satisfies StudyLocker without real mutual exclusion; the
// in-memory database is already serialized internally.
type fakeLocker struct {
	mu     sync.Mutex
	tokens int
}

func (l *fakeLocker) LockStudy(ctx context.Context, studyID int, duration, timeout time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens++
	return "token", nil
}

func (l *fakeLocker) UnlockStudy(ctx context.Context, studyID int, token string) error {
	return nil
}

// countingDatabase wraps the catalog database and counts the bulk path ACL
// lookups the file walk issues.
type countingDatabase struct {
	persistence.CatalogDatabase
	pathLookups int
}

func (c *countingDatabase) GetFileAclsByPaths(ctx context.Context, studyID int, paths []string, members []string) (map[string][]model.AclEntry, error) {
	c.pathLookups++
	return c.CatalogDatabase.GetFileAclsByPaths(ctx, studyID, paths, members)
}

// fixture is one study with an owner, two plain users, a group, a folder
// tree and a couple of entities, enough to exercise every resolution rule.
type fixture struct {
	db      *persistence_inmemory.InMemoryCatalogDatabase
	manager *Manager

	studyID  int
	folderID int
	fileID   int
	deepID   int
	jobID    int
	sampleID int
}

const (
	ownerUser = "owner"
	aliceUser = "alice"
	bobUser   = "bob"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := persistence_inmemory.NewInMemoryCatalogDatabase(150000)

	for _, u := range []string{ownerUser, aliceUser, bobUser} {
		require.NoError(t, db.CreateUser(ctx, model.User{ID: u, Name: u, Status: model.Status{Name: model.StatusReady}}))
	}

	projectID := mustID(t, db)
	require.NoError(t, db.CreateProject(ctx, model.Project{
		ID: projectID, OwnerID: ownerUser, Alias: "1000g", Name: "1000 Genomes",
		Status: model.Status{Name: model.StatusReady},
	}))

	f := &fixture{db: db, studyID: mustID(t, db)}
	require.NoError(t, db.CreateStudy(ctx, model.Study{
		ID: f.studyID, ProjectID: projectID, Alias: "phase1", Name: "Phase 1",
		Groups: []model.Group{{ID: "members", UserIDs: []string{aliceUser}}},
		Acls:   []model.AclEntry{},
		Status: model.Status{Name: model.StatusReady},
	}))

	f.folderID = mustID(t, db)
	require.NoError(t, db.CreateFile(ctx, model.File{
		ID: f.folderID, StudyID: f.studyID, Name: "data", Path: "data/",
		Type: model.FileTypeFolder, Acls: []model.AclEntry{},
		Status: model.Status{Name: model.StatusReady},
	}))
	f.fileID = mustID(t, db)
	require.NoError(t, db.CreateFile(ctx, model.File{
		ID: f.fileID, StudyID: f.studyID, Name: "chr1.vcf", Path: "data/chr1.vcf",
		Type: model.FileTypeFile, Acls: []model.AclEntry{},
		Status: model.Status{Name: model.StatusReady},
	}))
	f.deepID = mustID(t, db)
	require.NoError(t, db.CreateFile(ctx, model.File{
		ID: f.deepID, StudyID: f.studyID, Name: "chr2.vcf", Path: "data/vcfs/chr2.vcf",
		Type: model.FileTypeFile, Acls: []model.AclEntry{},
		Status: model.Status{Name: model.StatusReady},
	}))

	f.jobID = mustID(t, db)
	require.NoError(t, db.CreateJob(ctx, model.Job{
		ID: f.jobID, StudyID: f.studyID, Name: "index-1", ToolName: "samtools",
		ExecutionStatus: model.JobStatusPrepared, Acls: []model.AclEntry{},
		Status: model.Status{Name: model.StatusReady},
	}))

	f.sampleID = mustID(t, db)
	require.NoError(t, db.CreateSample(ctx, model.Sample{
		ID: f.sampleID, StudyID: f.studyID, Name: "HG00096",
		Acls:           []model.AclEntry{},
		AnnotationSets: []model.AnnotationSet{{Name: "clinical", VariableSetID: 1}},
		Status:         model.Status{Name: model.StatusReady},
	}))

	f.manager = NewManager(db, &fakeLocker{}, 20*time.Second, 10*time.Second)
	return f
}

func mustID(t *testing.T, db *persistence_inmemory.InMemoryCatalogDatabase) int {
	t.Helper()
	id, err := db.NextID(context.Background())
	require.NoError(t, err)
	return id
}

func (f *fixture) jobRef() EntityRef {
	return EntityRef{Kind: model.KindJob, ID: f.jobID, StudyID: f.studyID}
}

func (f *fixture) sampleRef() EntityRef {
	return EntityRef{Kind: model.KindSample, ID: f.sampleID, StudyID: f.studyID}
}

func (f *fixture) fileRef(t *testing.T, id int) EntityRef {
	t.Helper()
	file, err := f.db.GetFile(context.Background(), id)
	require.NoError(t, err)
	return FileRef(file)
}

// grantStudy writes a study ACL entry directly, bypassing the mutator.
func (f *fixture) grantStudy(t *testing.T, member string, perms ...model.Permission) {
	t.Helper()
	require.NoError(t, f.db.SetAclsToMember(context.Background(), model.KindStudy, f.studyID, member, perms))
}

// grant writes an entity ACL entry directly, bypassing the mutator.
func (f *fixture) grant(t *testing.T, kind model.Kind, id int, member string, perms ...model.Permission) {
	t.Helper()
	require.NoError(t, f.db.SetAclsToMember(context.Background(), kind, id, member, perms))
}
