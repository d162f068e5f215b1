package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// CreateSample registers a sample in the study.
func (c *Catalog) CreateSample(ctx context.Context, caller string, studyID int, sample model.Sample) (model.Sample, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateSamples); err != nil {
		return model.Sample{}, err
	}
	if sample.Name == "" {
		return model.Sample{}, common.NewErrInvalidArgument("sample name is required")
	}
	if _, err := c.db.FindSampleByName(ctx, studyID, sample.Name); err == nil {
		return model.Sample{}, common.NewErrConflict("sample '%s' already exists in study %d", sample.Name, studyID)
	} else if !common.IsErrNotFound(err) {
		return model.Sample{}, err
	}
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Sample{}, err
	}
	sample.ID = id
	sample.StudyID = studyID
	sample.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateSample(ctx, sample); err != nil {
		return model.Sample{}, err
	}
	audit.Log(ctx, c.audit, caller, "sample.create", "sample", id, sample.Name)
	return sample, nil
}

// GetSample returns the sample when the caller holds VIEW. Annotation sets
// are nulled without VIEW_ANNOTATIONS, matching the list filter.
func (c *Catalog) GetSample(ctx context.Context, caller string, sampleID int) (model.Sample, error) {
	sample, err := c.db.GetSample(ctx, sampleID)
	if err != nil {
		return model.Sample{}, err
	}
	filtered, err := c.auth.FilterSamples(ctx, caller, []model.Sample{sample})
	if err != nil {
		return model.Sample{}, err
	}
	if len(filtered) == 0 {
		return model.Sample{}, common.NewErrPermissionDenied("user '%s' cannot view sample %d", caller, sampleID)
	}
	return filtered[0], nil
}

func (c *Catalog) ListSamples(ctx context.Context, caller string, studyID int) ([]model.Sample, error) {
	samples, err := c.db.ListSamples(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return c.auth.FilterSamples(ctx, caller, samples)
}

func (c *Catalog) UpdateSample(ctx context.Context, caller string, sample model.Sample) (model.Sample, error) {
	current, err := c.db.GetSample(ctx, sample.ID)
	if err != nil {
		return model.Sample{}, err
	}
	ref := authorization.EntityRef{Kind: model.KindSample, ID: current.ID, StudyID: current.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Update); err != nil {
		return model.Sample{}, err
	}
	if sample.Source != "" {
		current.Source = sample.Source
	}
	if sample.Description != "" {
		current.Description = sample.Description
	}
	if sample.IndividualID != 0 {
		current.IndividualID = sample.IndividualID
	}
	if err := c.db.UpdateSample(ctx, current); err != nil {
		return model.Sample{}, err
	}
	audit.Log(ctx, c.audit, caller, "sample.update", "sample", current.ID, current.Name)
	return current, nil
}

// DeleteSample soft-deletes the sample and invalidates every cohort that
// referenced it.
func (c *Catalog) DeleteSample(ctx context.Context, caller string, sampleID int) error {
	sample, err := c.db.GetSample(ctx, sampleID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindSample, ID: sample.ID, StudyID: sample.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	if err := c.db.DeleteSample(ctx, sampleID); err != nil {
		return err
	}
	if err := c.invalidateCohortsWithSample(ctx, sample.StudyID, sampleID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "sample.delete", "sample", sampleID, sample.Name)
	return nil
}

func (c *Catalog) RestoreSample(ctx context.Context, caller string, sampleID int) error {
	sample, err := c.db.GetSample(ctx, sampleID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindSample, ID: sample.ID, StudyID: sample.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	return c.db.RestoreSample(ctx, sampleID)
}

// invalidateCohortsWithSample marks every cohort containing the sample as
// INVALID; their stats no longer describe their members.
func (c *Catalog) invalidateCohortsWithSample(ctx context.Context, studyID, sampleID int) error {
	cohorts, err := c.db.ListCohorts(ctx, studyID)
	if err != nil {
		return err
	}
	for _, cohort := range cohorts {
		for _, id := range cohort.SampleIDs {
			if id != sampleID {
				continue
			}
			cohort.Status = model.Status{
				Name:    model.StatusInvalid,
				Date:    common.GetCurrentTimestamp(),
				Message: "sample removed from cohort",
			}
			if err := c.db.UpdateCohort(ctx, cohort); err != nil {
				return err
			}
			break
		}
	}
	return nil
}
