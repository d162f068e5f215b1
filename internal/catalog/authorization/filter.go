package authorization

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/model"
)

// studyScope caches everything a filter pass needs about one (study,
// principal) pair: the owner, the member precedence, the study-level
// fallback entry, and the path ACL cache. One scope lives for one request.
type studyScope struct {
	studyID    int
	owner      bool
	admin      *model.AclEntry
	members    []string
	studyEntry *model.AclEntry
	studySeen  bool
	actx       *AuthContext
}

func (m *Manager) newStudyScope(ctx context.Context, studyID int, principal string) (*studyScope, error) {
	owner, err := m.db.GetStudyOwner(ctx, studyID)
	if err != nil {
		return nil, err
	}
	scope := &studyScope{studyID: studyID, actx: NewAuthContext(studyID)}
	if principal == owner {
		scope.owner = true
		return scope, nil
	}
	if principal == model.AdminUser {
		entry, found, err := m.db.GetDaemonAcl(ctx, studyID, model.AdminUser)
		if err != nil {
			return nil, err
		}
		if found {
			scope.admin = &entry
		}
		return scope, nil
	}
	scope.members, err = m.memberPrecedence(ctx, studyID, principal)
	if err != nil {
		return nil, err
	}
	return scope, nil
}

// studyFallback resolves and caches the study-level entry for the scope.
func (m *Manager) studyFallback(ctx context.Context, scope *studyScope) (*model.AclEntry, error) {
	if scope.studySeen {
		return scope.studyEntry, nil
	}
	entry, found, err := m.resolveStudyEntry(ctx, scope.studyID, scope.members)
	if err != nil {
		return nil, err
	}
	scope.studySeen = true
	if found {
		scope.studyEntry = &entry
	}
	return scope.studyEntry, nil
}

// scopedAllowed answers a permission question through the scope's caches.
// Files walk their ancestor paths; every other kind looks up its own entry
// and falls back to the projected study ACL.
func (m *Manager) scopedAllowed(ctx context.Context, scope *studyScope, ref EntityRef, permission model.Permission) (bool, error) {
	if scope.owner {
		return true, nil
	}
	if scope.admin != nil {
		if ref.Kind == model.KindStudy {
			return scope.admin.Has(permission), nil
		}
		return model.DeriveEntryFromStudy(ref.Kind, *scope.admin).Has(permission), nil
	}
	if len(scope.members) == 0 {
		return false, nil
	}

	var entry model.AclEntry
	var found bool
	var err error
	if ref.Kind == model.KindFile {
		entry, found, err = m.resolveFileEntryCached(ctx, scope.actx, ref.Path, scope.members)
	} else {
		var acls []model.AclEntry
		acls, err = m.db.GetAcls(ctx, ref.Kind, ref.ID, scope.members)
		if err == nil {
			entry, found = pickEntry(acls, scope.members)
		}
	}
	if err != nil {
		return false, err
	}
	if found {
		return entry.Has(permission), nil
	}
	fallback, err := m.studyFallback(ctx, scope)
	if err != nil || fallback == nil {
		return false, err
	}
	return model.DeriveEntryFromStudy(ref.Kind, *fallback).Has(permission), nil
}

// scopes tracks one studyScope per study touched by a filter pass.
type scopes struct {
	m         *Manager
	principal string
	byStudy   map[int]*studyScope
}

func (m *Manager) newScopes(principal string) *scopes {
	return &scopes{m: m, principal: principal, byStudy: make(map[int]*studyScope)}
}

func (s *scopes) get(ctx context.Context, studyID int) (*studyScope, error) {
	if scope, ok := s.byStudy[studyID]; ok {
		return scope, nil
	}
	scope, err := s.m.newStudyScope(ctx, studyID, s.principal)
	if err != nil {
		return nil, err
	}
	s.byStudy[studyID] = scope
	return scope, nil
}

// FilterFiles removes the files the principal may not VIEW, preserving
// order. All files of one study share a single path ACL cache, so the
// adaptor sees at most one bulk lookup per distinct ancestor path set.
func (m *Manager) FilterFiles(ctx context.Context, principal string, files []model.File) ([]model.File, error) {
	sc := m.newScopes(principal)
	out := make([]model.File, 0, len(files))
	for _, f := range files {
		scope, err := sc.get(ctx, f.StudyID)
		if err != nil {
			return nil, err
		}
		ok, err := m.scopedAllowed(ctx, scope, FileRef(f), model.View)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// FilterJobs removes the jobs the principal may not VIEW, preserving order.
func (m *Manager) FilterJobs(ctx context.Context, principal string, jobs []model.Job) ([]model.Job, error) {
	sc := m.newScopes(principal)
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		scope, err := sc.get(ctx, j.StudyID)
		if err != nil {
			return nil, err
		}
		ok, err := m.scopedAllowed(ctx, scope, EntityRef{Kind: model.KindJob, ID: j.ID, StudyID: j.StudyID}, model.View)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, j)
		}
	}
	return out, nil
}

// FilterSamples removes invisible samples and nulls the annotation sets of
// those visible without VIEW_ANNOTATIONS.
func (m *Manager) FilterSamples(ctx context.Context, principal string, samples []model.Sample) ([]model.Sample, error) {
	sc := m.newScopes(principal)
	out := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		scope, err := sc.get(ctx, s.StudyID)
		if err != nil {
			return nil, err
		}
		ref := EntityRef{Kind: model.KindSample, ID: s.ID, StudyID: s.StudyID}
		ok, err := m.scopedAllowed(ctx, scope, ref, model.View)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		annotations, err := m.scopedAllowed(ctx, scope, ref, model.ViewAnnotations)
		if err != nil {
			return nil, err
		}
		if !annotations {
			s.AnnotationSets = nil
		}
		out = append(out, s)
	}
	return out, nil
}

// FilterIndividuals removes invisible individuals and nulls annotation sets
// without VIEW_ANNOTATIONS.
func (m *Manager) FilterIndividuals(ctx context.Context, principal string, individuals []model.Individual) ([]model.Individual, error) {
	sc := m.newScopes(principal)
	out := make([]model.Individual, 0, len(individuals))
	for _, ind := range individuals {
		scope, err := sc.get(ctx, ind.StudyID)
		if err != nil {
			return nil, err
		}
		ref := EntityRef{Kind: model.KindIndividual, ID: ind.ID, StudyID: ind.StudyID}
		ok, err := m.scopedAllowed(ctx, scope, ref, model.View)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		annotations, err := m.scopedAllowed(ctx, scope, ref, model.ViewAnnotations)
		if err != nil {
			return nil, err
		}
		if !annotations {
			ind.AnnotationSets = nil
		}
		out = append(out, ind)
	}
	return out, nil
}

// FilterCohorts removes invisible cohorts and nulls annotation sets without
// VIEW_ANNOTATIONS.
func (m *Manager) FilterCohorts(ctx context.Context, principal string, cohorts []model.Cohort) ([]model.Cohort, error) {
	sc := m.newScopes(principal)
	out := make([]model.Cohort, 0, len(cohorts))
	for _, c := range cohorts {
		scope, err := sc.get(ctx, c.StudyID)
		if err != nil {
			return nil, err
		}
		ref := EntityRef{Kind: model.KindCohort, ID: c.ID, StudyID: c.StudyID}
		ok, err := m.scopedAllowed(ctx, scope, ref, model.View)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		annotations, err := m.scopedAllowed(ctx, scope, ref, model.ViewAnnotations)
		if err != nil {
			return nil, err
		}
		if !annotations {
			c.AnnotationSets = nil
		}
		out = append(out, c)
	}
	return out, nil
}

// FilterVariableSets drops confidential variable sets unless the principal
// holds CONFIDENTIAL_VARIABLE_SET_ACCESS on the study.
func (m *Manager) FilterVariableSets(ctx context.Context, principal string, studyID int, sets []model.VariableSet) ([]model.VariableSet, error) {
	confidentialOK, err := m.Allowed(ctx, EntityRef{Kind: model.KindStudy, ID: studyID, StudyID: studyID},
		principal, model.ConfidentialVariableSetAccess)
	if err != nil {
		return nil, err
	}
	out := make([]model.VariableSet, 0, len(sets))
	for _, vs := range sets {
		if vs.Confidential && !confidentialOK {
			continue
		}
		out = append(out, vs)
	}
	return out, nil
}
