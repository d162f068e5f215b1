package persistence

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

func (db *MongoDBCatalogDatabase) checkStudyExists(ctx context.Context, studyID int) error {
	_, err := db.GetStudy(ctx, studyID)
	return err
}

// --- files ---

func (db *MongoDBCatalogDatabase) CreateFile(ctx context.Context, file model.File) error {
	if err := db.checkStudyExists(ctx, file.StudyID); err != nil {
		return err
	}
	filter := bson.M{"studyId": file.StudyID, "path": file.Path, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.File](ctx, db.db.Collection("files"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching path '%s'", file.Path)
	}
	if found {
		return common.NewErrPrecondition("path '%s' already exists in study %d", file.Path, file.StudyID)
	}
	if _, err := db.db.Collection("files").InsertOne(ctx, file); err != nil {
		return common.NewInternalServerError(err, "error creating file '%s'", file.Path)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetFile(ctx context.Context, fileID int) (model.File, error) {
	file, found, err := findOneDoc[model.File](ctx, db.db.Collection("files"), bson.M{"id": fileID})
	if err != nil {
		return model.File{}, common.NewInternalServerError(err, "error fetching file %d", fileID)
	}
	if !found {
		return model.File{}, common.NewErrNotFound("file %d not found", fileID)
	}
	return file, nil
}

func (db *MongoDBCatalogDatabase) FindFileByPath(ctx context.Context, studyID int, path string) (model.File, error) {
	filter := bson.M{"studyId": studyID, "path": path, "status.name": notDeleted()}
	file, found, err := findOneDoc[model.File](ctx, db.db.Collection("files"), filter)
	if err != nil {
		return model.File{}, common.NewInternalServerError(err, "error fetching path '%s'", path)
	}
	if !found {
		return model.File{}, common.NewErrNotFound("path '%s' not found in study %d", path, studyID)
	}
	return file, nil
}

func (db *MongoDBCatalogDatabase) ListFiles(ctx context.Context, studyID int) ([]model.File, error) {
	filter := bson.M{"studyId": studyID, "status.name": notDeleted()}
	files, err := findDocs[model.File](ctx, db.db.Collection("files"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing files of study %d", studyID)
	}
	return files, nil
}

func (db *MongoDBCatalogDatabase) ListFilesUnderPath(ctx context.Context, studyID int, pathPrefix string) ([]model.File, error) {
	filter := bson.M{
		"studyId":     studyID,
		"path":        bson.M{"$regex": "^" + regexp.QuoteMeta(pathPrefix)},
		"status.name": notDeleted(),
	}
	files, err := findDocs[model.File](ctx, db.db.Collection("files"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing files under '%s'", pathPrefix)
	}
	return files, nil
}

func (db *MongoDBCatalogDatabase) UpdateFile(ctx context.Context, file model.File) error {
	res, err := db.db.Collection("files").ReplaceOne(ctx, bson.M{"id": file.ID}, file)
	if err != nil {
		return common.NewInternalServerError(err, "error updating file %d", file.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("file %d not found", file.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteFile(ctx context.Context, fileID int) error {
	return db.setStatus(ctx, model.KindFile, fileID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreFile(ctx context.Context, fileID int) error {
	return db.setStatus(ctx, model.KindFile, fileID, model.StatusReady)
}

// --- samples ---

func (db *MongoDBCatalogDatabase) CreateSample(ctx context.Context, sample model.Sample) error {
	if err := db.checkStudyExists(ctx, sample.StudyID); err != nil {
		return err
	}
	filter := bson.M{"studyId": sample.StudyID, "name": sample.Name, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.Sample](ctx, db.db.Collection("samples"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching sample '%s'", sample.Name)
	}
	if found {
		return common.NewErrPrecondition("sample '%s' already exists in study %d", sample.Name, sample.StudyID)
	}
	if _, err := db.db.Collection("samples").InsertOne(ctx, sample); err != nil {
		return common.NewInternalServerError(err, "error creating sample '%s'", sample.Name)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetSample(ctx context.Context, sampleID int) (model.Sample, error) {
	sample, found, err := findOneDoc[model.Sample](ctx, db.db.Collection("samples"), bson.M{"id": sampleID})
	if err != nil {
		return model.Sample{}, common.NewInternalServerError(err, "error fetching sample %d", sampleID)
	}
	if !found {
		return model.Sample{}, common.NewErrNotFound("sample %d not found", sampleID)
	}
	return sample, nil
}

func (db *MongoDBCatalogDatabase) FindSampleByName(ctx context.Context, studyID int, name string) (model.Sample, error) {
	filter := bson.M{"studyId": studyID, "name": name, "status.name": notDeleted()}
	sample, found, err := findOneDoc[model.Sample](ctx, db.db.Collection("samples"), filter)
	if err != nil {
		return model.Sample{}, common.NewInternalServerError(err, "error fetching sample '%s'", name)
	}
	if !found {
		return model.Sample{}, common.NewErrNotFound("sample '%s' not found in study %d", name, studyID)
	}
	return sample, nil
}

func (db *MongoDBCatalogDatabase) ListSamples(ctx context.Context, studyID int) ([]model.Sample, error) {
	filter := bson.M{"studyId": studyID, "status.name": notDeleted()}
	samples, err := findDocs[model.Sample](ctx, db.db.Collection("samples"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing samples of study %d", studyID)
	}
	return samples, nil
}

func (db *MongoDBCatalogDatabase) UpdateSample(ctx context.Context, sample model.Sample) error {
	res, err := db.db.Collection("samples").ReplaceOne(ctx, bson.M{"id": sample.ID}, sample)
	if err != nil {
		return common.NewInternalServerError(err, "error updating sample %d", sample.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("sample %d not found", sample.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteSample(ctx context.Context, sampleID int) error {
	return db.setStatus(ctx, model.KindSample, sampleID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreSample(ctx context.Context, sampleID int) error {
	return db.setStatus(ctx, model.KindSample, sampleID, model.StatusReady)
}

// --- individuals ---

func (db *MongoDBCatalogDatabase) CreateIndividual(ctx context.Context, individual model.Individual) error {
	if err := db.checkStudyExists(ctx, individual.StudyID); err != nil {
		return err
	}
	filter := bson.M{"studyId": individual.StudyID, "name": individual.Name, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.Individual](ctx, db.db.Collection("individuals"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching individual '%s'", individual.Name)
	}
	if found {
		return common.NewErrPrecondition("individual '%s' already exists in study %d", individual.Name, individual.StudyID)
	}
	if _, err := db.db.Collection("individuals").InsertOne(ctx, individual); err != nil {
		return common.NewInternalServerError(err, "error creating individual '%s'", individual.Name)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetIndividual(ctx context.Context, individualID int) (model.Individual, error) {
	individual, found, err := findOneDoc[model.Individual](ctx, db.db.Collection("individuals"), bson.M{"id": individualID})
	if err != nil {
		return model.Individual{}, common.NewInternalServerError(err, "error fetching individual %d", individualID)
	}
	if !found {
		return model.Individual{}, common.NewErrNotFound("individual %d not found", individualID)
	}
	return individual, nil
}

func (db *MongoDBCatalogDatabase) FindIndividualByName(ctx context.Context, studyID int, name string) (model.Individual, error) {
	filter := bson.M{"studyId": studyID, "name": name, "status.name": notDeleted()}
	individual, found, err := findOneDoc[model.Individual](ctx, db.db.Collection("individuals"), filter)
	if err != nil {
		return model.Individual{}, common.NewInternalServerError(err, "error fetching individual '%s'", name)
	}
	if !found {
		return model.Individual{}, common.NewErrNotFound("individual '%s' not found in study %d", name, studyID)
	}
	return individual, nil
}

func (db *MongoDBCatalogDatabase) ListIndividuals(ctx context.Context, studyID int) ([]model.Individual, error) {
	filter := bson.M{"studyId": studyID, "status.name": notDeleted()}
	individuals, err := findDocs[model.Individual](ctx, db.db.Collection("individuals"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing individuals of study %d", studyID)
	}
	return individuals, nil
}

func (db *MongoDBCatalogDatabase) UpdateIndividual(ctx context.Context, individual model.Individual) error {
	res, err := db.db.Collection("individuals").ReplaceOne(ctx, bson.M{"id": individual.ID}, individual)
	if err != nil {
		return common.NewInternalServerError(err, "error updating individual %d", individual.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("individual %d not found", individual.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteIndividual(ctx context.Context, individualID int) error {
	return db.setStatus(ctx, model.KindIndividual, individualID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreIndividual(ctx context.Context, individualID int) error {
	return db.setStatus(ctx, model.KindIndividual, individualID, model.StatusReady)
}

// --- cohorts ---

func (db *MongoDBCatalogDatabase) CreateCohort(ctx context.Context, cohort model.Cohort) error {
	if err := db.checkStudyExists(ctx, cohort.StudyID); err != nil {
		return err
	}
	filter := bson.M{"studyId": cohort.StudyID, "name": cohort.Name, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.Cohort](ctx, db.db.Collection("cohorts"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching cohort '%s'", cohort.Name)
	}
	if found {
		return common.NewErrPrecondition("cohort '%s' already exists in study %d", cohort.Name, cohort.StudyID)
	}
	if _, err := db.db.Collection("cohorts").InsertOne(ctx, cohort); err != nil {
		return common.NewInternalServerError(err, "error creating cohort '%s'", cohort.Name)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetCohort(ctx context.Context, cohortID int) (model.Cohort, error) {
	cohort, found, err := findOneDoc[model.Cohort](ctx, db.db.Collection("cohorts"), bson.M{"id": cohortID})
	if err != nil {
		return model.Cohort{}, common.NewInternalServerError(err, "error fetching cohort %d", cohortID)
	}
	if !found {
		return model.Cohort{}, common.NewErrNotFound("cohort %d not found", cohortID)
	}
	return cohort, nil
}

func (db *MongoDBCatalogDatabase) FindCohortByName(ctx context.Context, studyID int, name string) (model.Cohort, error) {
	filter := bson.M{"studyId": studyID, "name": name, "status.name": notDeleted()}
	cohort, found, err := findOneDoc[model.Cohort](ctx, db.db.Collection("cohorts"), filter)
	if err != nil {
		return model.Cohort{}, common.NewInternalServerError(err, "error fetching cohort '%s'", name)
	}
	if !found {
		return model.Cohort{}, common.NewErrNotFound("cohort '%s' not found in study %d", name, studyID)
	}
	return cohort, nil
}

func (db *MongoDBCatalogDatabase) ListCohorts(ctx context.Context, studyID int) ([]model.Cohort, error) {
	filter := bson.M{"studyId": studyID, "status.name": notDeleted()}
	cohorts, err := findDocs[model.Cohort](ctx, db.db.Collection("cohorts"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing cohorts of study %d", studyID)
	}
	return cohorts, nil
}

func (db *MongoDBCatalogDatabase) UpdateCohort(ctx context.Context, cohort model.Cohort) error {
	res, err := db.db.Collection("cohorts").ReplaceOne(ctx, bson.M{"id": cohort.ID}, cohort)
	if err != nil {
		return common.NewInternalServerError(err, "error updating cohort %d", cohort.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("cohort %d not found", cohort.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteCohort(ctx context.Context, cohortID int) error {
	return db.setStatus(ctx, model.KindCohort, cohortID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreCohort(ctx context.Context, cohortID int) error {
	return db.setStatus(ctx, model.KindCohort, cohortID, model.StatusReady)
}

// --- datasets ---

func (db *MongoDBCatalogDatabase) CreateDataset(ctx context.Context, dataset model.Dataset) error {
	if err := db.checkStudyExists(ctx, dataset.StudyID); err != nil {
		return err
	}
	filter := bson.M{"studyId": dataset.StudyID, "name": dataset.Name, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.Dataset](ctx, db.db.Collection("datasets"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching dataset '%s'", dataset.Name)
	}
	if found {
		return common.NewErrPrecondition("dataset '%s' already exists in study %d", dataset.Name, dataset.StudyID)
	}
	if _, err := db.db.Collection("datasets").InsertOne(ctx, dataset); err != nil {
		return common.NewInternalServerError(err, "error creating dataset '%s'", dataset.Name)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetDataset(ctx context.Context, datasetID int) (model.Dataset, error) {
	dataset, found, err := findOneDoc[model.Dataset](ctx, db.db.Collection("datasets"), bson.M{"id": datasetID})
	if err != nil {
		return model.Dataset{}, common.NewInternalServerError(err, "error fetching dataset %d", datasetID)
	}
	if !found {
		return model.Dataset{}, common.NewErrNotFound("dataset %d not found", datasetID)
	}
	return dataset, nil
}

func (db *MongoDBCatalogDatabase) FindDatasetByName(ctx context.Context, studyID int, name string) (model.Dataset, error) {
	filter := bson.M{"studyId": studyID, "name": name, "status.name": notDeleted()}
	dataset, found, err := findOneDoc[model.Dataset](ctx, db.db.Collection("datasets"), filter)
	if err != nil {
		return model.Dataset{}, common.NewInternalServerError(err, "error fetching dataset '%s'", name)
	}
	if !found {
		return model.Dataset{}, common.NewErrNotFound("dataset '%s' not found in study %d", name, studyID)
	}
	return dataset, nil
}

func (db *MongoDBCatalogDatabase) ListDatasets(ctx context.Context, studyID int) ([]model.Dataset, error) {
	filter := bson.M{"studyId": studyID, "status.name": notDeleted()}
	datasets, err := findDocs[model.Dataset](ctx, db.db.Collection("datasets"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing datasets of study %d", studyID)
	}
	return datasets, nil
}

func (db *MongoDBCatalogDatabase) UpdateDataset(ctx context.Context, dataset model.Dataset) error {
	res, err := db.db.Collection("datasets").ReplaceOne(ctx, bson.M{"id": dataset.ID}, dataset)
	if err != nil {
		return common.NewInternalServerError(err, "error updating dataset %d", dataset.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("dataset %d not found", dataset.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteDataset(ctx context.Context, datasetID int) error {
	return db.setStatus(ctx, model.KindDataset, datasetID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreDataset(ctx context.Context, datasetID int) error {
	return db.setStatus(ctx, model.KindDataset, datasetID, model.StatusReady)
}

// --- panels ---

func (db *MongoDBCatalogDatabase) CreatePanel(ctx context.Context, panel model.DiseasePanel) error {
	if err := db.checkStudyExists(ctx, panel.StudyID); err != nil {
		return err
	}
	filter := bson.M{"studyId": panel.StudyID, "name": panel.Name, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.DiseasePanel](ctx, db.db.Collection("panels"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching panel '%s'", panel.Name)
	}
	if found {
		return common.NewErrPrecondition("panel '%s' already exists in study %d", panel.Name, panel.StudyID)
	}
	if _, err := db.db.Collection("panels").InsertOne(ctx, panel); err != nil {
		return common.NewInternalServerError(err, "error creating panel '%s'", panel.Name)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetPanel(ctx context.Context, panelID int) (model.DiseasePanel, error) {
	panel, found, err := findOneDoc[model.DiseasePanel](ctx, db.db.Collection("panels"), bson.M{"id": panelID})
	if err != nil {
		return model.DiseasePanel{}, common.NewInternalServerError(err, "error fetching panel %d", panelID)
	}
	if !found {
		return model.DiseasePanel{}, common.NewErrNotFound("panel %d not found", panelID)
	}
	return panel, nil
}

func (db *MongoDBCatalogDatabase) FindPanelByName(ctx context.Context, studyID int, name string) (model.DiseasePanel, error) {
	filter := bson.M{"studyId": studyID, "name": name, "status.name": notDeleted()}
	panel, found, err := findOneDoc[model.DiseasePanel](ctx, db.db.Collection("panels"), filter)
	if err != nil {
		return model.DiseasePanel{}, common.NewInternalServerError(err, "error fetching panel '%s'", name)
	}
	if !found {
		return model.DiseasePanel{}, common.NewErrNotFound("panel '%s' not found in study %d", name, studyID)
	}
	return panel, nil
}

func (db *MongoDBCatalogDatabase) ListPanels(ctx context.Context, studyID int) ([]model.DiseasePanel, error) {
	filter := bson.M{"studyId": studyID, "status.name": notDeleted()}
	panels, err := findDocs[model.DiseasePanel](ctx, db.db.Collection("panels"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing panels of study %d", studyID)
	}
	return panels, nil
}

func (db *MongoDBCatalogDatabase) UpdatePanel(ctx context.Context, panel model.DiseasePanel) error {
	res, err := db.db.Collection("panels").ReplaceOne(ctx, bson.M{"id": panel.ID}, panel)
	if err != nil {
		return common.NewInternalServerError(err, "error updating panel %d", panel.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("panel %d not found", panel.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeletePanel(ctx context.Context, panelID int) error {
	return db.setStatus(ctx, model.KindPanel, panelID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestorePanel(ctx context.Context, panelID int) error {
	return db.setStatus(ctx, model.KindPanel, panelID, model.StatusReady)
}

// --- jobs ---

func (db *MongoDBCatalogDatabase) CreateJob(ctx context.Context, job model.Job) error {
	if err := db.checkStudyExists(ctx, job.StudyID); err != nil {
		return err
	}
	if _, err := db.db.Collection("jobs").InsertOne(ctx, job); err != nil {
		return common.NewInternalServerError(err, "error creating job '%s'", job.Name)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetJob(ctx context.Context, jobID int) (model.Job, error) {
	job, found, err := findOneDoc[model.Job](ctx, db.db.Collection("jobs"), bson.M{"id": jobID})
	if err != nil {
		return model.Job{}, common.NewInternalServerError(err, "error fetching job %d", jobID)
	}
	if !found {
		return model.Job{}, common.NewErrNotFound("job %d not found", jobID)
	}
	return job, nil
}

func (db *MongoDBCatalogDatabase) FindJobByName(ctx context.Context, studyID int, name string) (model.Job, error) {
	filter := bson.M{"studyId": studyID, "name": name, "status.name": notDeleted()}
	job, found, err := findOneDoc[model.Job](ctx, db.db.Collection("jobs"), filter)
	if err != nil {
		return model.Job{}, common.NewInternalServerError(err, "error fetching job '%s'", name)
	}
	if !found {
		return model.Job{}, common.NewErrNotFound("job '%s' not found in study %d", name, studyID)
	}
	return job, nil
}

func (db *MongoDBCatalogDatabase) ListJobs(ctx context.Context, studyID int, filter JobFilter) ([]model.Job, error) {
	query := bson.M{"studyId": studyID, "status.name": notDeleted()}
	if filter.Name != "" {
		query["name"] = filter.Name
	}
	if filter.ToolName != "" {
		query["toolName"] = filter.ToolName
	}
	if filter.ExecutionStatus != "" {
		query["executionStatus"] = filter.ExecutionStatus
	}
	jobs, err := findDocs[model.Job](ctx, db.db.Collection("jobs"), query)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing jobs of study %d", studyID)
	}
	return jobs, nil
}

func (db *MongoDBCatalogDatabase) UpdateJob(ctx context.Context, job model.Job) error {
	res, err := db.db.Collection("jobs").ReplaceOne(ctx, bson.M{"id": job.ID}, job)
	if err != nil {
		return common.NewInternalServerError(err, "error updating job %d", job.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("job %d not found", job.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteJob(ctx context.Context, jobID int) error {
	return db.setStatus(ctx, model.KindJob, jobID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreJob(ctx context.Context, jobID int) error {
	return db.setStatus(ctx, model.KindJob, jobID, model.StatusReady)
}
