package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// Individuals, datasets and disease panels share the plain CRUD shape:
// study-level create permission, VIEW-filtered reads, per-entity update
// and delete rights.

func (c *Catalog) CreateIndividual(ctx context.Context, caller string, studyID int, individual model.Individual) (model.Individual, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateIndividuals); err != nil {
		return model.Individual{}, err
	}
	if individual.Name == "" {
		return model.Individual{}, common.NewErrInvalidArgument("individual name is required")
	}
	if _, err := c.db.FindIndividualByName(ctx, studyID, individual.Name); err == nil {
		return model.Individual{}, common.NewErrConflict("individual '%s' already exists in study %d", individual.Name, studyID)
	} else if !common.IsErrNotFound(err) {
		return model.Individual{}, err
	}
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Individual{}, err
	}
	individual.ID = id
	individual.StudyID = studyID
	individual.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateIndividual(ctx, individual); err != nil {
		return model.Individual{}, err
	}
	audit.Log(ctx, c.audit, caller, "individual.create", "individual", id, individual.Name)
	return individual, nil
}

func (c *Catalog) GetIndividual(ctx context.Context, caller string, individualID int) (model.Individual, error) {
	individual, err := c.db.GetIndividual(ctx, individualID)
	if err != nil {
		return model.Individual{}, err
	}
	filtered, err := c.auth.FilterIndividuals(ctx, caller, []model.Individual{individual})
	if err != nil {
		return model.Individual{}, err
	}
	if len(filtered) == 0 {
		return model.Individual{}, common.NewErrPermissionDenied("user '%s' cannot view individual %d", caller, individualID)
	}
	return filtered[0], nil
}

func (c *Catalog) ListIndividuals(ctx context.Context, caller string, studyID int) ([]model.Individual, error) {
	individuals, err := c.db.ListIndividuals(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return c.auth.FilterIndividuals(ctx, caller, individuals)
}

func (c *Catalog) DeleteIndividual(ctx context.Context, caller string, individualID int) error {
	individual, err := c.db.GetIndividual(ctx, individualID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindIndividual, ID: individual.ID, StudyID: individual.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	if err := c.db.DeleteIndividual(ctx, individualID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "individual.delete", "individual", individualID, individual.Name)
	return nil
}

func (c *Catalog) UpdateIndividual(ctx context.Context, caller string, individualID int, update model.Individual) (model.Individual, error) {
	individual, err := c.db.GetIndividual(ctx, individualID)
	if err != nil {
		return model.Individual{}, err
	}
	ref := authorization.EntityRef{Kind: model.KindIndividual, ID: individual.ID, StudyID: individual.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Update); err != nil {
		return model.Individual{}, err
	}
	if update.Sex != "" {
		individual.Sex = update.Sex
	}
	if update.FatherID != 0 {
		individual.FatherID = update.FatherID
	}
	if update.MotherID != 0 {
		individual.MotherID = update.MotherID
	}
	if err := c.db.UpdateIndividual(ctx, individual); err != nil {
		return model.Individual{}, err
	}
	audit.Log(ctx, c.audit, caller, "individual.update", "individual", individualID, individual.Name)
	return individual, nil
}

func (c *Catalog) RestoreIndividual(ctx context.Context, caller string, individualID int) error {
	individual, err := c.db.GetIndividual(ctx, individualID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindIndividual, ID: individual.ID, StudyID: individual.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	return c.db.RestoreIndividual(ctx, individualID)
}

func (c *Catalog) CreateDataset(ctx context.Context, caller string, studyID int, dataset model.Dataset) (model.Dataset, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateDatasets); err != nil {
		return model.Dataset{}, err
	}
	if dataset.Name == "" {
		return model.Dataset{}, common.NewErrInvalidArgument("dataset name is required")
	}
	for _, fileID := range dataset.FileIDs {
		file, err := c.db.GetFile(ctx, fileID)
		if err != nil {
			return model.Dataset{}, err
		}
		if file.StudyID != studyID {
			return model.Dataset{}, common.NewErrInvalidArgument("file %d belongs to study %d, not %d", fileID, file.StudyID, studyID)
		}
	}
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Dataset{}, err
	}
	dataset.ID = id
	dataset.StudyID = studyID
	dataset.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateDataset(ctx, dataset); err != nil {
		return model.Dataset{}, err
	}
	audit.Log(ctx, c.audit, caller, "dataset.create", "dataset", id, dataset.Name)
	return dataset, nil
}

func (c *Catalog) GetDataset(ctx context.Context, caller string, datasetID int) (model.Dataset, error) {
	dataset, err := c.db.GetDataset(ctx, datasetID)
	if err != nil {
		return model.Dataset{}, err
	}
	ref := authorization.EntityRef{Kind: model.KindDataset, ID: dataset.ID, StudyID: dataset.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.View); err != nil {
		return model.Dataset{}, err
	}
	return dataset, nil
}

func (c *Catalog) ListDatasets(ctx context.Context, caller string, studyID int) ([]model.Dataset, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.ViewDatasets); err != nil {
		return nil, err
	}
	return c.db.ListDatasets(ctx, studyID)
}

func (c *Catalog) DeleteDataset(ctx context.Context, caller string, datasetID int) error {
	dataset, err := c.db.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindDataset, ID: dataset.ID, StudyID: dataset.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	if err := c.db.DeleteDataset(ctx, datasetID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "dataset.delete", "dataset", datasetID, dataset.Name)
	return nil
}

func (c *Catalog) CreatePanel(ctx context.Context, caller string, studyID int, panel model.DiseasePanel) (model.DiseasePanel, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreatePanels); err != nil {
		return model.DiseasePanel{}, err
	}
	if panel.Name == "" {
		return model.DiseasePanel{}, common.NewErrInvalidArgument("panel name is required")
	}
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.DiseasePanel{}, err
	}
	panel.ID = id
	panel.StudyID = studyID
	panel.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreatePanel(ctx, panel); err != nil {
		return model.DiseasePanel{}, err
	}
	audit.Log(ctx, c.audit, caller, "panel.create", "panel", id, panel.Name)
	return panel, nil
}

func (c *Catalog) GetPanel(ctx context.Context, caller string, panelID int) (model.DiseasePanel, error) {
	panel, err := c.db.GetPanel(ctx, panelID)
	if err != nil {
		return model.DiseasePanel{}, err
	}
	ref := authorization.EntityRef{Kind: model.KindPanel, ID: panel.ID, StudyID: panel.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.View); err != nil {
		return model.DiseasePanel{}, err
	}
	return panel, nil
}

func (c *Catalog) ListPanels(ctx context.Context, caller string, studyID int) ([]model.DiseasePanel, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.ViewPanels); err != nil {
		return nil, err
	}
	return c.db.ListPanels(ctx, studyID)
}

func (c *Catalog) DeletePanel(ctx context.Context, caller string, panelID int) error {
	panel, err := c.db.GetPanel(ctx, panelID)
	if err != nil {
		return err
	}
	ref := authorization.EntityRef{Kind: model.KindPanel, ID: panel.ID, StudyID: panel.StudyID}
	if err := c.auth.CheckPermission(ctx, ref, caller, model.Delete); err != nil {
		return err
	}
	if err := c.db.DeletePanel(ctx, panelID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "panel.delete", "panel", panelID, panel.Name)
	return nil
}
