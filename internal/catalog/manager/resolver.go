package manager

import (
	"context"
	"strconv"
	"strings"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// SilentMissingID marks an unresolvable reference in a silent bulk lookup.
const SilentMissingID = -1

// Resource is a resolved entity reference. Negated is only honored by
// query filters; mutating operations reject negated references.
type Resource struct {
	Caller  string
	StudyID int
	ID      int
	Negated bool
}

// Resolution pairs one input of a bulk lookup with its outcome. Err is set
// only in silent mode, where failures do not abort the batch.
type Resolution struct {
	Ref      string
	Resource Resource
	Err      error
}

// kindLabel renders the entity kind the way user-facing messages spell it.
func kindLabel(kind model.Kind) string {
	label := string(kind)
	return strings.ToUpper(label[:1]) + label[1:]
}

// ResolveStudy parses a study reference: a numeric id above the offset,
// "owner@projectAlias:studyAlias", "projectAlias:studyAlias" with the
// caller as owner, or a bare alias searched across the caller's visible
// studies. A "!" prefix marks the study as excluded for query filters.
func (c *Catalog) ResolveStudy(ctx context.Context, caller, ref string) (Resource, error) {
	negated := strings.HasPrefix(ref, "!")
	if negated {
		ref = ref[1:]
	}
	if ref == "" {
		return Resource{}, common.NewErrInvalidArgument("empty study reference")
	}

	if id, err := strconv.Atoi(ref); err == nil && id > c.offset {
		if _, err := c.db.GetStudy(ctx, id); err != nil {
			return Resource{}, err
		}
		return Resource{Caller: caller, StudyID: id, ID: id, Negated: negated}, nil
	}

	owner := caller
	scoped := ref
	if at := strings.Index(ref, "@"); at >= 0 {
		owner = ref[:at]
		scoped = ref[at+1:]
	}
	if colon := strings.Index(scoped, ":"); colon >= 0 {
		project, err := c.db.FindProjectByAlias(ctx, owner, scoped[:colon])
		if err != nil {
			return Resource{}, err
		}
		study, err := c.db.FindStudyByAlias(ctx, project.ID, scoped[colon+1:])
		if err != nil {
			return Resource{}, err
		}
		return Resource{Caller: caller, StudyID: study.ID, ID: study.ID, Negated: negated}, nil
	}

	id, err := c.searchStudyByAlias(ctx, caller, scoped)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Caller: caller, StudyID: id, ID: id, Negated: negated}, nil
}

// searchStudyByAlias scans the caller's visible studies for a bare alias.
func (c *Catalog) searchStudyByAlias(ctx context.Context, caller, alias string) (int, error) {
	studies, err := c.db.ListStudies(ctx)
	if err != nil {
		return 0, err
	}
	var matches []int
	for _, study := range studies {
		if study.Alias != alias && study.Name != alias {
			continue
		}
		visible, err := c.auth.CanViewStudy(ctx, study.ID, caller)
		if err != nil {
			return 0, err
		}
		if visible {
			matches = append(matches, study.ID)
		}
	}
	switch len(matches) {
	case 0:
		return 0, common.NewErrNotFound("Study id '%s' does not exist", alias)
	case 1:
		return matches[0], nil
	default:
		return 0, common.NewErrAmbiguous("study '%s' matches %d studies, qualify it as project:study", alias, len(matches))
	}
}

// ResolveEntity parses one entity reference following the rules in order:
// numeric above the offset, owner-scoped "user@project:study/name", caller
// scoped "project:study/name", then a bare name searched across the
// caller's visible studies. Zero matches is NotFound, several Ambiguous.
func (c *Catalog) ResolveEntity(ctx context.Context, caller string, kind model.Kind, ref string) (Resource, error) {
	original := ref
	negated := strings.HasPrefix(ref, "!")
	if negated {
		ref = ref[1:]
	}
	if ref == "" {
		return Resource{}, common.NewErrInvalidArgument("empty %s reference", kind)
	}

	if id, err := strconv.Atoi(ref); err == nil && id > c.offset {
		studyID, err := c.entityStudy(ctx, kind, id)
		if err != nil {
			return Resource{}, err
		}
		return Resource{Caller: caller, StudyID: studyID, ID: id, Negated: negated}, nil
	}

	if strings.ContainsAny(ref, "@:") {
		scope, name := splitScope(ref)
		study, err := c.ResolveStudy(ctx, caller, scope)
		if err != nil {
			return Resource{}, err
		}
		id, err := c.findInStudy(ctx, kind, study.StudyID, name)
		if err != nil {
			return Resource{}, err
		}
		return Resource{Caller: caller, StudyID: study.StudyID, ID: id, Negated: negated}, nil
	}

	studies, err := c.db.ListStudies(ctx)
	if err != nil {
		return Resource{}, err
	}
	var matches []Resource
	for _, study := range studies {
		visible, err := c.auth.CanViewStudy(ctx, study.ID, caller)
		if err != nil {
			return Resource{}, err
		}
		if !visible {
			continue
		}
		id, err := c.findInStudy(ctx, kind, study.ID, ref)
		if common.IsErrNotFound(err) {
			continue
		}
		if err != nil {
			return Resource{}, err
		}
		matches = append(matches, Resource{Caller: caller, StudyID: study.ID, ID: id, Negated: negated})
	}
	switch len(matches) {
	case 0:
		return Resource{}, common.NewErrNotFound("%s id '%s' does not exist", kindLabel(kind), original)
	case 1:
		return matches[0], nil
	default:
		return Resource{}, common.NewErrAmbiguous("%s '%s' matches %d entities, qualify it with a study", kindLabel(kind), original, len(matches))
	}
}

// ResolveEntities parses a comma-separated bulk reference preserving the
// input order. In silent mode unresolvable items carry SilentMissingID and
// their error; otherwise the first failure aborts the batch.
func (c *Catalog) ResolveEntities(ctx context.Context, caller string, kind model.Kind, refs string, silent bool) ([]Resolution, error) {
	parts := strings.Split(refs, ",")
	out := make([]Resolution, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		resource, err := c.ResolveEntity(ctx, caller, kind, part)
		if err != nil {
			if !silent {
				return nil, err
			}
			out = append(out, Resolution{Ref: part, Resource: Resource{Caller: caller, ID: SilentMissingID}, Err: err})
			continue
		}
		out = append(out, Resolution{Ref: part, Resource: resource})
	}
	return out, nil
}

// splitScope separates "project:study/name" into its study scope and the
// in-study name. The first "/" after the last ":" starts the name; without
// one, the text after the last ":" is the name.
func splitScope(ref string) (scope, name string) {
	colon := strings.LastIndex(ref, ":")
	rest := ref[colon+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return ref[:colon+1+slash], rest[slash+1:]
	}
	if colon < 0 {
		return ref, ""
	}
	return ref[:colon], rest
}

// entityStudy loads the entity to learn its enclosing study.
func (c *Catalog) entityStudy(ctx context.Context, kind model.Kind, id int) (int, error) {
	switch kind {
	case model.KindStudy:
		study, err := c.db.GetStudy(ctx, id)
		return study.ID, err
	case model.KindFile:
		file, err := c.db.GetFile(ctx, id)
		return file.StudyID, err
	case model.KindSample:
		sample, err := c.db.GetSample(ctx, id)
		return sample.StudyID, err
	case model.KindIndividual:
		individual, err := c.db.GetIndividual(ctx, id)
		return individual.StudyID, err
	case model.KindCohort:
		cohort, err := c.db.GetCohort(ctx, id)
		return cohort.StudyID, err
	case model.KindDataset:
		dataset, err := c.db.GetDataset(ctx, id)
		return dataset.StudyID, err
	case model.KindPanel:
		panel, err := c.db.GetPanel(ctx, id)
		return panel.StudyID, err
	case model.KindJob:
		job, err := c.db.GetJob(ctx, id)
		return job.StudyID, err
	default:
		return 0, common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
}

// findInStudy resolves a name (a path for files) within one study.
func (c *Catalog) findInStudy(ctx context.Context, kind model.Kind, studyID int, name string) (int, error) {
	switch kind {
	case model.KindFile:
		file, err := c.db.FindFileByPath(ctx, studyID, name)
		return file.ID, err
	case model.KindSample:
		sample, err := c.db.FindSampleByName(ctx, studyID, name)
		return sample.ID, err
	case model.KindIndividual:
		individual, err := c.db.FindIndividualByName(ctx, studyID, name)
		return individual.ID, err
	case model.KindCohort:
		cohort, err := c.db.FindCohortByName(ctx, studyID, name)
		return cohort.ID, err
	case model.KindDataset:
		dataset, err := c.db.FindDatasetByName(ctx, studyID, name)
		return dataset.ID, err
	case model.KindPanel:
		panel, err := c.db.FindPanelByName(ctx, studyID, name)
		return panel.ID, err
	case model.KindJob:
		job, err := c.db.FindJobByName(ctx, studyID, name)
		return job.ID, err
	default:
		return 0, common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
}
