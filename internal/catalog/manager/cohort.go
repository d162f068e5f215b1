package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// CreateCohort registers a named set of samples. Every member sample must
// exist in the same study.
func (c *Catalog) CreateCohort(ctx context.Context, caller string, studyID int, cohort model.Cohort) (model.Cohort, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateCohorts); err != nil {
		return model.Cohort{}, err
	}
	if cohort.Name == "" {
		return model.Cohort{}, common.NewErrInvalidArgument("cohort name is required")
	}
	if _, err := c.db.FindCohortByName(ctx, studyID, cohort.Name); err == nil {
		return model.Cohort{}, common.NewErrConflict("cohort '%s' already exists in study %d", cohort.Name, studyID)
	} else if !common.IsErrNotFound(err) {
		return model.Cohort{}, err
	}
	for _, sampleID := range cohort.SampleIDs {
		sample, err := c.db.GetSample(ctx, sampleID)
		if err != nil {
			return model.Cohort{}, err
		}
		if sample.StudyID != studyID {
			return model.Cohort{}, common.NewErrInvalidArgument("sample %d belongs to study %d, not %d", sampleID, sample.StudyID, studyID)
		}
	}
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Cohort{}, err
	}
	cohort.ID = id
	cohort.StudyID = studyID
	cohort.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateCohort(ctx, cohort); err != nil {
		return model.Cohort{}, err
	}
	audit.Log(ctx, c.audit, caller, "cohort.create", "cohort", id, cohort.Name)
	return cohort, nil
}

func (c *Catalog) GetCohort(ctx context.Context, caller string, cohortID int) (model.Cohort, error) {
	cohort, err := c.db.GetCohort(ctx, cohortID)
	if err != nil {
		return model.Cohort{}, err
	}
	filtered, err := c.auth.FilterCohorts(ctx, caller, []model.Cohort{cohort})
	if err != nil {
		return model.Cohort{}, err
	}
	if len(filtered) == 0 {
		return model.Cohort{}, common.NewErrPermissionDenied("user '%s' cannot view cohort %d", caller, cohortID)
	}
	return filtered[0], nil
}

func (c *Catalog) ListCohorts(ctx context.Context, caller string, studyID int) ([]model.Cohort, error) {
	cohorts, err := c.db.ListCohorts(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return c.auth.FilterCohorts(ctx, caller, cohorts)
}

// UpdateCohortSamples replaces the member set. Any change to the members
// marks the cohort INVALID until its stats are recalculated.
func (c *Catalog) UpdateCohortSamples(ctx context.Context, caller string, cohortID int, sampleIDs []int) (model.Cohort, error) {
	cohort, err := c.db.GetCohort(ctx, cohortID)
	if err != nil {
		return model.Cohort{}, err
	}
	ref := authorization.EntityRef{Kind: model.KindCohort, ID: cohort.ID, StudyID: cohort.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Update); err != nil {
		return model.Cohort{}, err
	}
	for _, sampleID := range sampleIDs {
		sample, err := c.db.GetSample(ctx, sampleID)
		if err != nil {
			return model.Cohort{}, err
		}
		if sample.StudyID != cohort.StudyID {
			return model.Cohort{}, common.NewErrInvalidArgument("sample %d belongs to study %d, not %d", sampleID, sample.StudyID, cohort.StudyID)
		}
	}
	cohort.SampleIDs = sampleIDs
	cohort.Status = model.Status{
		Name:    model.StatusInvalid,
		Date:    common.GetCurrentTimestamp(),
		Message: "cohort members changed",
	}
	if err := c.db.UpdateCohort(ctx, cohort); err != nil {
		return model.Cohort{}, err
	}
	audit.Log(ctx, c.audit, caller, "cohort.update", "cohort", cohort.ID, cohort.Name)
	return cohort, nil
}

// ValidateCohort returns the cohort to READY after stats recalculation.
func (c *Catalog) ValidateCohort(ctx context.Context, caller string, cohortID int) (model.Cohort, error) {
	cohort, err := c.db.GetCohort(ctx, cohortID)
	if err != nil {
		return model.Cohort{}, err
	}
	ref := authorization.EntityRef{Kind: model.KindCohort, ID: cohort.ID, StudyID: cohort.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Update); err != nil {
		return model.Cohort{}, err
	}
	cohort.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.UpdateCohort(ctx, cohort); err != nil {
		return model.Cohort{}, err
	}
	return cohort, nil
}

func (c *Catalog) DeleteCohort(ctx context.Context, caller string, cohortID int) error {
	cohort, err := c.db.GetCohort(ctx, cohortID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindCohort, ID: cohort.ID, StudyID: cohort.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	if err := c.db.DeleteCohort(ctx, cohortID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "cohort.delete", "cohort", cohortID, cohort.Name)
	return nil
}

func (c *Catalog) RestoreCohort(ctx context.Context, caller string, cohortID int) error {
	cohort, err := c.db.GetCohort(ctx, cohortID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindCohort, ID: cohort.ID, StudyID: cohort.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	return c.db.RestoreCohort(ctx, cohortID)
}
