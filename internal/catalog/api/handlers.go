package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	"github.com/nicholsn/opencga/internal/common"
)

// jobsInfo serves the bulk job lookup. Entries come back in input order;
// silent mode turns per-item failures into errorMsg entries.
func (s *Server) jobsInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)
	silent := silentMode(r)

	resolved, err := s.catalog.ResolveEntities(ctx, caller, model.KindJob, chi.URLParam(r, "jobId"), silent)
	if err != nil {
		s.fail(w, err)
		return
	}
	entries := make([]any, 0, len(resolved))
	for _, res := range resolved {
		if res.Err != nil {
			entries = append(entries, common.ErrorResult[model.Job](res.Ref, res.Err))
			continue
		}
		started := time.Now()
		job, err := s.catalog.GetJob(ctx, caller, res.Resource.ID)
		if err != nil {
			if !silent {
				s.fail(w, err)
				return
			}
			entries = append(entries, common.ErrorResult[model.Job](res.Ref, err))
			continue
		}
		entries = append(entries, common.NewQueryResult(res.Ref, int(time.Since(started).Milliseconds()), []model.Job{job}))
	}
	s.ok(w, entries...)
}

func (s *Server) searchJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)
	query := r.URL.Query()

	study, err := s.catalog.ResolveStudy(ctx, caller, query.Get("studyId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	filter := persistence.JobFilter{
		Name:            query.Get("name"),
		ToolName:        query.Get("toolName"),
		ExecutionStatus: query.Get("status"),
	}
	started := time.Now()
	jobs, err := s.catalog.SearchJobs(ctx, caller, study.StudyID, filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	total := len(jobs)
	jobs = paginate(jobs, common.ParseQueryOptions(r))
	result := common.NewQueryResult("search", int(time.Since(started).Milliseconds()), jobs)
	result.NumTotalResults = int64(total)
	s.ok(w, result)
}

// paginate applies the advisory skip and limit options to a result page.
func paginate[T any](items []T, opts common.QueryOptions) []T {
	if opts.Skip > 0 {
		if opts.Skip >= len(items) {
			return nil
		}
		items = items[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func (s *Server) visitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)

	resource, err := s.catalog.ResolveEntity(ctx, caller, model.KindJob, chi.URLParam(r, "jobId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	job, err := s.catalog.VisitJob(ctx, caller, resource.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, common.NewQueryResult(strconv.Itoa(job.ID), 0, []model.Job{job}))
}

// jobStatus reconciles one job against the batch scheduler and returns the
// refreshed record.
func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)

	resource, err := s.catalog.ResolveEntity(ctx, caller, model.KindJob, chi.URLParam(r, "jobId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	job, err := s.catalog.RefreshJobStatus(ctx, caller, resource.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, common.NewQueryResult(strconv.Itoa(job.ID), 0, []model.Job{job}))
}

func (s *Server) userInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)

	user, err := s.catalog.GetUser(ctx, caller, chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, common.NewQueryResult(user.ID, 0, []model.User{user}))
}

func (s *Server) searchProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)

	started := time.Now()
	projects, err := s.catalog.ListProjects(ctx, caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	total := len(projects)
	projects = paginate(projects, common.ParseQueryOptions(r))
	result := common.NewQueryResult("search", int(time.Since(started).Milliseconds()), projects)
	result.NumTotalResults = int64(total)
	s.ok(w, result)
}

func (s *Server) filesInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)
	silent := silentMode(r)

	resolved, err := s.catalog.ResolveEntities(ctx, caller, model.KindFile, chi.URLParam(r, "fileId"), silent)
	if err != nil {
		s.fail(w, err)
		return
	}
	entries := make([]any, 0, len(resolved))
	for _, res := range resolved {
		if res.Err != nil {
			entries = append(entries, common.ErrorResult[model.File](res.Ref, res.Err))
			continue
		}
		started := time.Now()
		file, err := s.catalog.GetFile(ctx, caller, res.Resource.ID)
		if err != nil {
			if !silent {
				s.fail(w, err)
				return
			}
			entries = append(entries, common.ErrorResult[model.File](res.Ref, err))
			continue
		}
		entries = append(entries, common.NewQueryResult(res.Ref, int(time.Since(started).Milliseconds()), []model.File{file}))
	}
	s.ok(w, entries...)
}

func (s *Server) samplesInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)
	silent := silentMode(r)

	resolved, err := s.catalog.ResolveEntities(ctx, caller, model.KindSample, chi.URLParam(r, "sampleId"), silent)
	if err != nil {
		s.fail(w, err)
		return
	}
	entries := make([]any, 0, len(resolved))
	for _, res := range resolved {
		if res.Err != nil {
			entries = append(entries, common.ErrorResult[model.Sample](res.Ref, res.Err))
			continue
		}
		started := time.Now()
		sample, err := s.catalog.GetSample(ctx, caller, res.Resource.ID)
		if err != nil {
			if !silent {
				s.fail(w, err)
				return
			}
			entries = append(entries, common.ErrorResult[model.Sample](res.Ref, err))
			continue
		}
		entries = append(entries, common.NewQueryResult(res.Ref, int(time.Since(started).Milliseconds()), []model.Sample{sample}))
	}
	s.ok(w, entries...)
}

func (s *Server) studyInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)

	resource, err := s.catalog.ResolveStudy(ctx, caller, chi.URLParam(r, "studyId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	study, err := s.catalog.GetStudy(ctx, caller, resource.StudyID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, common.NewQueryResult(strconv.Itoa(study.ID), 0, []model.Study{study}))
}

func (s *Server) studyGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := principal(r)

	resource, err := s.catalog.ResolveStudy(ctx, caller, chi.URLParam(r, "studyId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	groups, err := s.catalog.GetGroups(ctx, caller, resource.StudyID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, common.NewQueryResult(strconv.Itoa(resource.StudyID), 0, groups))
}
