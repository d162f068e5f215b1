// Package api is the REST collaborator over the catalog core. It hosts the
// error envelope contract: success is HTTP 200 with an empty error string,
// any core error is HTTP 500 with a single-sentence error, and silent bulk
// lookups degrade per item instead of failing the request.
package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/nicholsn/opencga/internal/catalog/manager"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PrincipalHeader names the header carrying the authenticated user id.
// Session resolution happens upstream; absence means anonymous.
const PrincipalHeader = "x-opencga-user"

// Server wires the catalog managers onto chi routes.
type Server struct {
	catalog *manager.Catalog
}

func NewServer(catalog *manager.Catalog) *Server {
	return &Server{catalog: catalog}
}

// RegisterRoutes mounts the API under {contextPath}/v1.
func (s *Server) RegisterRoutes(r chi.Router, contextPath string) {
	r.Route(contextPath+"/v1", func(r chi.Router) {
		r.Get("/jobs/search", s.searchJobs)
		r.Get("/jobs/{jobId}/info", s.jobsInfo)
		r.Get("/jobs/{jobId}/visit", s.visitJob)
		r.Get("/jobs/{jobId}/status", s.jobStatus)
		r.Get("/users/{userId}/info", s.userInfo)
		r.Get("/projects/search", s.searchProjects)
		r.Get("/files/{fileId}/info", s.filesInfo)
		r.Get("/samples/{sampleId}/info", s.samplesInfo)
		r.Get("/studies/{studyId}/info", s.studyInfo)
		r.Get("/studies/{studyId}/groups", s.studyGroups)

		s.aclRoutes(r, "studies", "studyId", model.KindStudy)
		s.aclRoutes(r, "jobs", "jobId", model.KindJob)
		s.aclRoutes(r, "files", "fileId", model.KindFile)
		s.aclRoutes(r, "samples", "sampleId", model.KindSample)
		s.aclRoutes(r, "cohorts", "cohortId", model.KindCohort)
	})
}

// principal extracts the request's principal, defaulting to anonymous.
func principal(r *http.Request) string {
	if user := r.Header.Get(PrincipalHeader); user != "" {
		return user
	}
	return model.AnonymousUser
}

func silentMode(r *http.Request) bool {
	return r.URL.Query().Get("silent") == "true"
}

// ok writes the 200 envelope with one entry per query result.
func (s *Server) ok(w http.ResponseWriter, entries ...any) {
	s.write(w, http.StatusOK, common.QueryResponse{Error: "", Response: entries})
}

// fail writes the 500 envelope carrying the error sentence. NotFound and
// PermissionDenied are normal control flow and are not logged.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch common.KindOf(err) {
	case common.KindNotFound, common.KindPermissionDenied:
	default:
		log.Printf("request failed: %v", err)
	}
	s.write(w, http.StatusInternalServerError, common.QueryResponse{Error: err.Error(), Response: []any{}})
}

func (s *Server) write(w http.ResponseWriter, status int, resp common.QueryResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
