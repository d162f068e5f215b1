package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	metadata_inmemory "github.com/nicholsn/opencga/internal/storage/metadata/inmemory"
)

const testOffset = 150000

type restFixture struct {
	router  chi.Router
	catalog *manager.Catalog
	studyID int
	jobID   int
}

type envelope struct {
	Error    string `json:"error"`
	Response []struct {
		ID         string            `json:"id"`
		NumResults int               `json:"numResults"`
		ErrorMsg   string            `json:"errorMsg"`
		Result     []json.RawMessage `json:"result"`
	} `json:"response"`
}

func newRestFixture(t *testing.T) *restFixture {
	t.Helper()
	ctx := context.Background()

	db := persistence_inmemory.NewInMemoryCatalogDatabase(testOffset)
	locker := metadata_inmemory.NewInMemoryMetadataAdaptor()
	auth := authorization.NewManager(db, locker, 2*time.Second, time.Second)
	ioManager, err := catalogio.NewPosixManager(t.TempDir())
	require.NoError(t, err)
	catalog := manager.NewCatalog(db, auth, ioManager, testOffset)

	for _, userID := range []string{"owner", "alice"} {
		_, err := catalog.CreateUser(ctx, model.User{ID: userID, Name: userID})
		require.NoError(t, err)
	}
	project, err := catalog.CreateProject(ctx, "owner", model.Project{Alias: "1000g", Name: "1000 Genomes"})
	require.NoError(t, err)
	study, err := catalog.CreateStudy(ctx, "owner", project.ID, model.Study{Alias: "phase1", Name: "Phase 1"})
	require.NoError(t, err)
	job, err := catalog.CreateJob(ctx, "owner", study.ID, model.Job{Name: "index-1", ToolName: "samtools"}, false)
	require.NoError(t, err)

	router := chi.NewRouter()
	api.NewServer(catalog).RegisterRoutes(router, "/opencga")

	return &restFixture{router: router, catalog: catalog, studyID: study.ID, jobID: job.ID}
}

// do issues a request as the given principal and decodes the envelope.
func (f *restFixture) do(t *testing.T, method, path, user string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/opencga/v1"+path, reader)
	if user != "" {
		req.Header.Set(api.PrincipalHeader, user)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestAnonymousDeniedByDefault(t *testing.T) {
	f := newRestFixture(t)

	status, resp := f.do(t, http.MethodGet, fmt.Sprintf("/jobs/%d/info", f.jobID), "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Response)
}

func TestPublicGrantOpensAnonymousAccess(t *testing.T) {
	f := newRestFixture(t)
	jobPath := fmt.Sprintf("/jobs/%d/info", f.jobID)

	status, _ := f.do(t, http.MethodPost, fmt.Sprintf("/studies/%d/acl/create", f.studyID), "owner",
		map[string]any{"members": []string{"*"}, "permissions": []string{"VIEW_JOBS"}})
	require.Equal(t, http.StatusOK, status)

	status, resp := f.do(t, http.MethodGet, jobPath, "", nil)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, 1, resp.Response[0].NumResults)

	// Revoking the public entry closes the door again.
	status, _ = f.do(t, http.MethodGet, fmt.Sprintf("/studies/%d/acl/%s/delete", f.studyID, "*"), "owner", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, jobPath, "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestEntityGrantOverridesStudyDefault(t *testing.T) {
	f := newRestFixture(t)
	jobPath := fmt.Sprintf("/jobs/%d/info", f.jobID)

	// alice needs a study entry before any job-level grant.
	status, _ := f.do(t, http.MethodPost, fmt.Sprintf("/studies/%d/acl/create", f.studyID), "owner",
		map[string]any{"members": []string{"alice"}, "permissions": []string{"VIEW_STUDY"}})
	require.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodGet, jobPath, "alice", nil)
	assert.Equal(t, http.StatusInternalServerError, status)

	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/jobs/%d/acl/create", f.jobID), "owner",
		map[string]any{"members": []string{"alice"}, "permissions": []string{"VIEW"}})
	require.Equal(t, http.StatusOK, status)

	status, resp := f.do(t, http.MethodGet, jobPath, "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, 1, resp.Response[0].NumResults)

	status, _ = f.do(t, http.MethodGet, fmt.Sprintf("/jobs/%d/acl/alice/delete", f.jobID), "owner", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, jobPath, "alice", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestBulkInfoPreservesOrder(t *testing.T) {
	f := newRestFixture(t)
	ctx := context.Background()

	second, err := f.catalog.CreateJob(ctx, "owner", f.studyID, model.Job{Name: "index-2", ToolName: "samtools"}, false)
	require.NoError(t, err)

	refs := fmt.Sprintf("%d,%d", second.ID, f.jobID)
	status, resp := f.do(t, http.MethodGet, "/jobs/"+refs+"/info", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 2)
	assert.Equal(t, strconv.Itoa(second.ID), resp.Response[0].ID)
	assert.Equal(t, strconv.Itoa(f.jobID), resp.Response[1].ID)

	// The reverse order comes back reversed.
	refs = fmt.Sprintf("%d,%d", f.jobID, second.ID)
	_, resp = f.do(t, http.MethodGet, "/jobs/"+refs+"/info", "owner", nil)
	require.Len(t, resp.Response, 2)
	assert.Equal(t, strconv.Itoa(f.jobID), resp.Response[0].ID)
}

func TestSilentModeDegradesPerItem(t *testing.T) {
	f := newRestFixture(t)
	refs := fmt.Sprintf("%d,%d,0", f.jobID, f.jobID)

	// Non-silent aborts the whole request with the missing id's sentence.
	status, resp := f.do(t, http.MethodGet, "/jobs/"+refs+"/info", "owner", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Job id '0' does not exist", resp.Error)
	assert.Empty(t, resp.Response)

	// Silent keeps the good entries and marks the failure in place.
	status, resp = f.do(t, http.MethodGet, "/jobs/"+refs+"/info?silent=true", "owner", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Response, 3)
	assert.Equal(t, 1, resp.Response[0].NumResults)
	assert.Equal(t, 1, resp.Response[1].NumResults)
	assert.Equal(t, "Job id '0' does not exist", resp.Response[2].ErrorMsg)
	assert.Equal(t, 0, resp.Response[2].NumResults)
}

func TestVisitFlagVisibleThroughSearch(t *testing.T) {
	f := newRestFixture(t)

	status, _ := f.do(t, http.MethodGet, fmt.Sprintf("/jobs/%d/visit", f.jobID), "owner", nil)
	require.Equal(t, http.StatusOK, status)

	status, resp := f.do(t, http.MethodGet, fmt.Sprintf("/jobs/search?studyId=%d", f.studyID), "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	require.Len(t, resp.Response[0].Result, 1)

	var job model.Job
	require.NoError(t, json.Unmarshal(resp.Response[0].Result[0], &job))
	assert.True(t, job.Visited)
}

func TestJobStatusEndpoint(t *testing.T) {
	f := newRestFixture(t)

	// Without a scheduler the record comes back as stored.
	status, resp := f.do(t, http.MethodGet, fmt.Sprintf("/jobs/%d/status", f.jobID), "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)

	var job model.Job
	require.NoError(t, json.Unmarshal(resp.Response[0].Result[0], &job))
	assert.Equal(t, f.jobID, job.ID)
}

func TestUserInfoIsSelfOnly(t *testing.T) {
	f := newRestFixture(t)

	status, resp := f.do(t, http.MethodGet, "/users/owner/info", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, "owner", resp.Response[0].ID)

	status, resp = f.do(t, http.MethodGet, "/users/owner/info", "alice", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, resp.Error)
}

func TestProjectsSearchListsOwnProjects(t *testing.T) {
	f := newRestFixture(t)

	status, resp := f.do(t, http.MethodGet, "/projects/search", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, 1, resp.Response[0].NumResults)

	// alice owns nothing and was never granted anything.
	status, resp = f.do(t, http.MethodGet, "/projects/search", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, 0, resp.Response[0].NumResults)
}

func TestStudyGroupsEndpoint(t *testing.T) {
	f := newRestFixture(t)

	status, resp := f.do(t, http.MethodGet, fmt.Sprintf("/studies/%d/groups", f.studyID), "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, 1, resp.Response[0].NumResults)
}

func TestAclListAndMemberInfo(t *testing.T) {
	f := newRestFixture(t)

	status, _ := f.do(t, http.MethodPost, fmt.Sprintf("/studies/%d/acl/create", f.studyID), "owner",
		map[string]any{"members": []string{"alice"}, "permissions": []string{"VIEW_STUDY", "VIEW_JOBS"}})
	require.Equal(t, http.StatusOK, status)

	status, resp := f.do(t, http.MethodGet, fmt.Sprintf("/studies/%d/acl", f.studyID), "owner", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)
	assert.GreaterOrEqual(t, resp.Response[0].NumResults, 1)

	// alice may ask about her own entry without SHARE_STUDY.
	status, resp = f.do(t, http.MethodGet, fmt.Sprintf("/studies/%d/acl/alice/info", f.studyID), "alice", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Response, 1)

	var entry model.AclEntry
	require.NoError(t, json.Unmarshal(resp.Response[0].Result[0], &entry))
	assert.Equal(t, "alice", entry.Member)
	assert.ElementsMatch(t, []model.Permission{model.ViewStudy, model.ViewJobs}, entry.Permissions)

	// But not about someone else's.
	status, _ = f.do(t, http.MethodGet, fmt.Sprintf("/studies/%d/acl/owner/info", f.studyID), "alice", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestAclUpdateAddRemove(t *testing.T) {
	f := newRestFixture(t)

	status, _ := f.do(t, http.MethodPost, fmt.Sprintf("/studies/%d/acl/create", f.studyID), "owner",
		map[string]any{"members": []string{"alice"}, "permissions": []string{"VIEW_STUDY"}})
	require.Equal(t, http.StatusOK, status)

	status, resp := f.do(t, http.MethodPost, fmt.Sprintf("/studies/%d/acl/alice/update", f.studyID), "owner",
		map[string]any{"add": []string{"VIEW_JOBS"}})
	require.Equal(t, http.StatusOK, status)

	var entry model.AclEntry
	require.NoError(t, json.Unmarshal(resp.Response[0].Result[0], &entry))
	assert.Contains(t, entry.Permissions, model.ViewJobs)

	status, resp = f.do(t, http.MethodPost, fmt.Sprintf("/studies/%d/acl/alice/update", f.studyID), "owner",
		map[string]any{"remove": []string{"VIEW_JOBS"}})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Response[0].Result[0], &entry))
	assert.NotContains(t, entry.Permissions, model.ViewJobs)
}
