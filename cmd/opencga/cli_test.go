package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/catalog/api"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	catalogio "github.com/nicholsn/opencga/internal/catalog/io"
	"github.com/nicholsn/opencga/internal/catalog/manager"
	"github.com/nicholsn/opencga/internal/catalog/model"
	persistence_inmemory "github.com/nicholsn/opencga/internal/catalog/persistence/inmemory"
	"github.com/nicholsn/opencga/internal/common"
	metadata_inmemory "github.com/nicholsn/opencga/internal/storage/metadata/inmemory"
)

// startDaemon serves the real API over the in-memory backends and returns
// its base URL plus a seeded job id.
func startDaemon(t *testing.T) (string, int, int) {
	t.Helper()
	ctx := context.Background()

	db := persistence_inmemory.NewInMemoryCatalogDatabase(150000)
	locker := metadata_inmemory.NewInMemoryMetadataAdaptor()
	auth := authorization.NewManager(db, locker, 2*time.Second, time.Second)
	ioManager, err := catalogio.NewPosixManager(t.TempDir())
	require.NoError(t, err)
	catalog := manager.NewCatalog(db, auth, ioManager, 150000)

	_, err = catalog.CreateUser(ctx, model.User{ID: "owner", Name: "owner"})
	require.NoError(t, err)
	project, err := catalog.CreateProject(ctx, "owner", model.Project{Alias: "1000g", Name: "1000 Genomes"})
	require.NoError(t, err)
	study, err := catalog.CreateStudy(ctx, "owner", project.ID, model.Study{Alias: "phase1", Name: "Phase 1"})
	require.NoError(t, err)
	job, err := catalog.CreateJob(ctx, "owner", study.ID, model.Job{Name: "index-1", ToolName: "samtools"}, false)
	require.NoError(t, err)

	router := chi.NewRouter()
	api.NewServer(catalog).RegisterRoutes(router, "")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL, study.ID, job.ID
}

// run executes the CLI with a fresh command tree and captures stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	out, err := run(t, "--session-file", sessionFile, "login", "http://localhost:9090", "owner")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as owner")

	info, err := os.Stat(sessionFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	session, err := newSessionStore(sessionFile).Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090", session.URL)
	assert.Equal(t, "owner", session.User)

	_, err = run(t, "--session-file", sessionFile, "logout")
	require.NoError(t, err)
	_, err = newSessionStore(sessionFile).Load()
	assert.True(t, common.IsErrPrecondition(err))
}

func TestLoginRejectsBadURL(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	_, err := run(t, "--session-file", sessionFile, "login", "not a url", "owner")
	require.Error(t, err)
	assert.True(t, common.IsErrInvalidArgument(err))
	assert.Equal(t, 1, common.ExitCode(err))
}

func TestCommandsRequireSession(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	_, err := run(t, "--session-file", sessionFile, "jobs", "info", "1")
	require.Error(t, err)
	assert.True(t, common.IsErrPrecondition(err))
	assert.Equal(t, 1, common.ExitCode(err))
}

func TestJobsInfoAgainstLiveDaemon(t *testing.T) {
	url, _, jobID := startDaemon(t)

	out, err := run(t, "--url", url, "--user", "owner", "jobs", "info", strconv.Itoa(jobID))
	require.NoError(t, err)
	assert.Contains(t, out, `"index-1"`)
	assert.Contains(t, out, `"samtools"`)
}

func TestRemoteErrorSurfacesAsSentence(t *testing.T) {
	url, _, _ := startDaemon(t)

	_, err := run(t, "--url", url, "--user", "owner", "jobs", "info", "0")
	require.Error(t, err)
	assert.Equal(t, "Job id '0' does not exist", err.Error())
}

func TestSilentInfoReportsPerIdFailures(t *testing.T) {
	url, _, jobID := startDaemon(t)

	out, err := run(t, "--url", url, "--user", "owner", "jobs", "info",
		fmt.Sprintf("%d,0", jobID), "--silent")
	require.NoError(t, err)
	assert.Contains(t, out, `"index-1"`)
	assert.Contains(t, out, "Job id '0' does not exist")
}

func TestAclGrantThroughCli(t *testing.T) {
	url, studyID, jobID := startDaemon(t)

	// anonymous cannot see the job until the grant lands.
	_, err := run(t, "--url", url, "--user", "anonymous", "jobs", "info", strconv.Itoa(jobID))
	require.Error(t, err)

	_, err = run(t, "--url", url, "--user", "owner", "acl", "create", "study", strconv.Itoa(studyID),
		"--members", "*", "--permissions", "VIEW_JOBS")
	require.NoError(t, err)

	out, err := run(t, "--url", url, "--user", "anonymous", "jobs", "info", strconv.Itoa(jobID))
	require.NoError(t, err)
	assert.Contains(t, out, `"index-1"`)

	out, err = run(t, "--url", url, "--user", "owner", "acl", "list", "study", strconv.Itoa(studyID))
	require.NoError(t, err)
	assert.Contains(t, out, "VIEW_JOBS")
}

func TestJobsSearchByStudyAlias(t *testing.T) {
	url, _, _ := startDaemon(t)

	out, err := run(t, "--url", url, "--user", "owner", "jobs", "search", "--study", "phase1")
	require.NoError(t, err)
	assert.Contains(t, out, `"index-1"`)
}

func TestUsersInfoIsSelfOnly(t *testing.T) {
	url, _, _ := startDaemon(t)

	out, err := run(t, "--url", url, "--user", "owner", "users", "info", "owner")
	require.NoError(t, err)
	assert.Contains(t, out, `"owner"`)

	_, err = run(t, "--url", url, "--user", "anonymous", "users", "info", "owner")
	require.Error(t, err)
}

func TestProjectsListShowsOwnedProjects(t *testing.T) {
	url, _, _ := startDaemon(t)

	out, err := run(t, "--url", url, "--user", "owner", "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"1000g"`)
}
