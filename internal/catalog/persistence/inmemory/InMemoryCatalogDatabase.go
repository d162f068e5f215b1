package persistence_inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	"github.com/nicholsn/opencga/internal/common"
)

// InMemoryCatalogDatabase keeps the whole catalog in maps. It backs unit
// tests and the demo mode of the server; the locking is coarse on purpose.
type InMemoryCatalogDatabase struct {
	mu sync.RWMutex

	users       map[string]model.User
	projects    map[int]model.Project
	studies     map[int]model.Study
	files       map[int]model.File
	samples     map[int]model.Sample
	individuals map[int]model.Individual
	cohorts     map[int]model.Cohort
	datasets    map[int]model.Dataset
	panels      map[int]model.DiseasePanel
	jobs        map[int]model.Job
	daemonAcls  map[int]map[string]model.AclEntry

	counter int
}

// NewInMemoryCatalogDatabase creates an empty catalog. Ids are handed out
// starting right above the offset.
func NewInMemoryCatalogDatabase(offset int) *InMemoryCatalogDatabase {
	return &InMemoryCatalogDatabase{
		users:       make(map[string]model.User),
		projects:    make(map[int]model.Project),
		studies:     make(map[int]model.Study),
		files:       make(map[int]model.File),
		samples:     make(map[int]model.Sample),
		individuals: make(map[int]model.Individual),
		cohorts:     make(map[int]model.Cohort),
		datasets:    make(map[int]model.Dataset),
		panels:      make(map[int]model.DiseasePanel),
		jobs:        make(map[int]model.Job),
		daemonAcls:  make(map[int]map[string]model.AclEntry),
		counter:     offset,
	}
}

func (db *InMemoryCatalogDatabase) Close(ctx context.Context) error {
	return nil
}

// NextID returns the next catalog-wide numeric id.
func (db *InMemoryCatalogDatabase) NextID(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.counter++
	return db.counter, nil
}

// --- users ---

func (db *InMemoryCatalogDatabase) CreateUser(ctx context.Context, user model.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.users[user.ID]; exists {
		return common.NewErrPrecondition("user '%s' already exists", user.ID)
	}
	db.users[user.ID] = user
	return nil
}

func (db *InMemoryCatalogDatabase) GetUser(ctx context.Context, userID string) (model.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	user, exists := db.users[userID]
	if !exists {
		return model.User{}, common.NewErrNotFound("user '%s' not found", userID)
	}
	return user, nil
}

func (db *InMemoryCatalogDatabase) UpdateUser(ctx context.Context, user model.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.users[user.ID]; !exists {
		return common.NewErrNotFound("user '%s' not found", user.ID)
	}
	db.users[user.ID] = user
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteUser(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	user, exists := db.users[userID]
	if !exists {
		return common.NewErrNotFound("user '%s' not found", userID)
	}
	user.Status = model.Status{Name: model.StatusDeleted, Date: common.GetCurrentTimestamp()}
	db.users[userID] = user
	return nil
}

// --- projects ---

func (db *InMemoryCatalogDatabase) CreateProject(ctx context.Context, project model.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range db.projects {
		if p.OwnerID == project.OwnerID && p.Alias == project.Alias && p.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("project alias '%s' already exists for user '%s'", project.Alias, project.OwnerID)
		}
	}
	db.projects[project.ID] = project
	return nil
}

func (db *InMemoryCatalogDatabase) GetProject(ctx context.Context, projectID int) (model.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	project, exists := db.projects[projectID]
	if !exists {
		return model.Project{}, common.NewErrNotFound("project %d not found", projectID)
	}
	return project, nil
}

func (db *InMemoryCatalogDatabase) FindProjectByAlias(ctx context.Context, ownerID, alias string) (model.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, p := range db.projects {
		if p.OwnerID == ownerID && p.Alias == alias && p.Status.Name != model.StatusDeleted {
			return p, nil
		}
	}
	return model.Project{}, common.NewErrNotFound("project '%s' not found for user '%s'", alias, ownerID)
}

func (db *InMemoryCatalogDatabase) ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var projects []model.Project
	for _, p := range db.projects {
		if p.OwnerID == ownerID && p.Status.Name != model.StatusDeleted {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (db *InMemoryCatalogDatabase) UpdateProject(ctx context.Context, project model.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.projects[project.ID]; !exists {
		return common.NewErrNotFound("project %d not found", project.ID)
	}
	db.projects[project.ID] = project
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteProject(ctx context.Context, projectID int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	project, exists := db.projects[projectID]
	if !exists {
		return common.NewErrNotFound("project %d not found", projectID)
	}
	project.Status = model.Status{Name: model.StatusDeleted, Date: common.GetCurrentTimestamp()}
	db.projects[projectID] = project
	return nil
}

// --- studies ---

func (db *InMemoryCatalogDatabase) CreateStudy(ctx context.Context, study model.Study) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.projects[study.ProjectID]; !exists {
		return common.NewErrNotFound("project %d not found", study.ProjectID)
	}
	for _, s := range db.studies {
		if s.ProjectID == study.ProjectID && s.Alias == study.Alias && s.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("study alias '%s' already exists in project %d", study.Alias, study.ProjectID)
		}
	}
	db.studies[study.ID] = study
	return nil
}

func (db *InMemoryCatalogDatabase) GetStudy(ctx context.Context, studyID int) (model.Study, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	study, exists := db.studies[studyID]
	if !exists {
		return model.Study{}, common.NewErrNotFound("study %d not found", studyID)
	}
	return study, nil
}

func (db *InMemoryCatalogDatabase) FindStudyByAlias(ctx context.Context, projectID int, alias string) (model.Study, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, s := range db.studies {
		if s.ProjectID == projectID && s.Alias == alias && s.Status.Name != model.StatusDeleted {
			return s, nil
		}
	}
	return model.Study{}, common.NewErrNotFound("study '%s' not found in project %d", alias, projectID)
}

func (db *InMemoryCatalogDatabase) ListStudies(ctx context.Context) ([]model.Study, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var studies []model.Study
	for _, s := range db.studies {
		if s.Status.Name != model.StatusDeleted {
			studies = append(studies, s)
		}
	}
	sort.Slice(studies, func(i, j int) bool { return studies[i].ID < studies[j].ID })
	return studies, nil
}

func (db *InMemoryCatalogDatabase) ListStudiesByProject(ctx context.Context, projectID int) ([]model.Study, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var studies []model.Study
	for _, s := range db.studies {
		if s.ProjectID == projectID && s.Status.Name != model.StatusDeleted {
			studies = append(studies, s)
		}
	}
	sort.Slice(studies, func(i, j int) bool { return studies[i].ID < studies[j].ID })
	return studies, nil
}

func (db *InMemoryCatalogDatabase) UpdateStudy(ctx context.Context, study model.Study) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[study.ID]; !exists {
		return common.NewErrNotFound("study %d not found", study.ID)
	}
	db.studies[study.ID] = study
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteStudy(ctx context.Context, studyID int) error {
	return db.setStudyStatus(studyID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreStudy(ctx context.Context, studyID int) error {
	return db.setStudyStatus(studyID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setStudyStatus(studyID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	study, exists := db.studies[studyID]
	if !exists {
		return common.NewErrNotFound("study %d not found", studyID)
	}
	study.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.studies[studyID] = study
	return nil
}

func (db *InMemoryCatalogDatabase) GetStudyOwner(ctx context.Context, studyID int) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	study, exists := db.studies[studyID]
	if !exists {
		return "", common.NewErrNotFound("study %d not found", studyID)
	}
	project, exists := db.projects[study.ProjectID]
	if !exists {
		return "", common.NewErrInternal("study %d references missing project %d", studyID, study.ProjectID)
	}
	return project.OwnerID, nil
}

// --- groups ---

func (db *InMemoryCatalogDatabase) CreateGroup(ctx context.Context, studyID int, group model.Group) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	study, exists := db.studies[studyID]
	if !exists {
		return common.NewErrNotFound("study %d not found", studyID)
	}
	for _, g := range study.Groups {
		if g.ID == group.ID {
			return common.NewErrPrecondition("group '%s' already exists in study %d", group.ID, studyID)
		}
	}
	study.Groups = append(study.Groups, group)
	db.studies[studyID] = study
	return nil
}

func (db *InMemoryCatalogDatabase) GetGroups(ctx context.Context, studyID int) ([]model.Group, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	study, exists := db.studies[studyID]
	if !exists {
		return nil, common.NewErrNotFound("study %d not found", studyID)
	}
	groups := make([]model.Group, len(study.Groups))
	copy(groups, study.Groups)
	return groups, nil
}

func (db *InMemoryCatalogDatabase) GetGroupsForUser(ctx context.Context, studyID int, userID string) ([]model.Group, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	study, exists := db.studies[studyID]
	if !exists {
		return nil, common.NewErrNotFound("study %d not found", studyID)
	}
	var groups []model.Group
	for _, g := range study.Groups {
		for _, u := range g.UserIDs {
			if u == userID {
				groups = append(groups, g)
				break
			}
		}
	}
	return groups, nil
}

func (db *InMemoryCatalogDatabase) AddGroupMember(ctx context.Context, studyID int, groupID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	study, exists := db.studies[studyID]
	if !exists {
		return common.NewErrNotFound("study %d not found", studyID)
	}
	for i, g := range study.Groups {
		if g.ID != groupID {
			continue
		}
		for _, u := range g.UserIDs {
			if u == userID {
				return nil
			}
		}
		study.Groups[i].UserIDs = append(study.Groups[i].UserIDs, userID)
		db.studies[studyID] = study
		return nil
	}
	return common.NewErrNotFound("group '%s' not found in study %d", groupID, studyID)
}

func (db *InMemoryCatalogDatabase) RemoveGroupMember(ctx context.Context, studyID int, groupID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	study, exists := db.studies[studyID]
	if !exists {
		return common.NewErrNotFound("study %d not found", studyID)
	}
	for i, g := range study.Groups {
		if g.ID != groupID {
			continue
		}
		kept := g.UserIDs[:0]
		for _, u := range g.UserIDs {
			if u != userID {
				kept = append(kept, u)
			}
		}
		study.Groups[i].UserIDs = kept
		db.studies[studyID] = study
		return nil
	}
	return common.NewErrNotFound("group '%s' not found in study %d", groupID, studyID)
}

func (db *InMemoryCatalogDatabase) DeleteGroup(ctx context.Context, studyID int, groupID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	study, exists := db.studies[studyID]
	if !exists {
		return common.NewErrNotFound("study %d not found", studyID)
	}
	for i, g := range study.Groups {
		if g.ID == groupID {
			study.Groups = append(study.Groups[:i], study.Groups[i+1:]...)
			db.studies[studyID] = study
			return nil
		}
	}
	return common.NewErrNotFound("group '%s' not found in study %d", groupID, studyID)
}

// --- files ---

func (db *InMemoryCatalogDatabase) CreateFile(ctx context.Context, file model.File) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[file.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", file.StudyID)
	}
	for _, f := range db.files {
		if f.StudyID == file.StudyID && f.Path == file.Path && f.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("path '%s' already exists in study %d", file.Path, file.StudyID)
		}
	}
	db.files[file.ID] = file
	return nil
}

func (db *InMemoryCatalogDatabase) GetFile(ctx context.Context, fileID int) (model.File, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	file, exists := db.files[fileID]
	if !exists {
		return model.File{}, common.NewErrNotFound("file %d not found", fileID)
	}
	return file, nil
}

func (db *InMemoryCatalogDatabase) FindFileByPath(ctx context.Context, studyID int, path string) (model.File, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, f := range db.files {
		if f.StudyID == studyID && f.Path == path && f.Status.Name != model.StatusDeleted {
			return f, nil
		}
	}
	return model.File{}, common.NewErrNotFound("path '%s' not found in study %d", path, studyID)
}

func (db *InMemoryCatalogDatabase) ListFiles(ctx context.Context, studyID int) ([]model.File, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var files []model.File
	for _, f := range db.files {
		if f.StudyID == studyID && f.Status.Name != model.StatusDeleted {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (db *InMemoryCatalogDatabase) ListFilesUnderPath(ctx context.Context, studyID int, pathPrefix string) ([]model.File, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var files []model.File
	for _, f := range db.files {
		if f.StudyID == studyID && f.Status.Name != model.StatusDeleted && strings.HasPrefix(f.Path, pathPrefix) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (db *InMemoryCatalogDatabase) UpdateFile(ctx context.Context, file model.File) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.files[file.ID]; !exists {
		return common.NewErrNotFound("file %d not found", file.ID)
	}
	db.files[file.ID] = file
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteFile(ctx context.Context, fileID int) error {
	return db.setFileStatus(fileID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreFile(ctx context.Context, fileID int) error {
	return db.setFileStatus(fileID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setFileStatus(fileID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	file, exists := db.files[fileID]
	if !exists {
		return common.NewErrNotFound("file %d not found", fileID)
	}
	file.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.files[fileID] = file
	return nil
}

// --- samples ---

func (db *InMemoryCatalogDatabase) CreateSample(ctx context.Context, sample model.Sample) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[sample.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", sample.StudyID)
	}
	for _, s := range db.samples {
		if s.StudyID == sample.StudyID && s.Name == sample.Name && s.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("sample '%s' already exists in study %d", sample.Name, sample.StudyID)
		}
	}
	db.samples[sample.ID] = sample
	return nil
}

func (db *InMemoryCatalogDatabase) GetSample(ctx context.Context, sampleID int) (model.Sample, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	sample, exists := db.samples[sampleID]
	if !exists {
		return model.Sample{}, common.NewErrNotFound("sample %d not found", sampleID)
	}
	return sample, nil
}

func (db *InMemoryCatalogDatabase) FindSampleByName(ctx context.Context, studyID int, name string) (model.Sample, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, s := range db.samples {
		if s.StudyID == studyID && s.Name == name && s.Status.Name != model.StatusDeleted {
			return s, nil
		}
	}
	return model.Sample{}, common.NewErrNotFound("sample '%s' not found in study %d", name, studyID)
}

func (db *InMemoryCatalogDatabase) ListSamples(ctx context.Context, studyID int) ([]model.Sample, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var samples []model.Sample
	for _, s := range db.samples {
		if s.StudyID == studyID && s.Status.Name != model.StatusDeleted {
			samples = append(samples, s)
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples, nil
}

func (db *InMemoryCatalogDatabase) UpdateSample(ctx context.Context, sample model.Sample) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.samples[sample.ID]; !exists {
		return common.NewErrNotFound("sample %d not found", sample.ID)
	}
	db.samples[sample.ID] = sample
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteSample(ctx context.Context, sampleID int) error {
	return db.setSampleStatus(sampleID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreSample(ctx context.Context, sampleID int) error {
	return db.setSampleStatus(sampleID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setSampleStatus(sampleID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	sample, exists := db.samples[sampleID]
	if !exists {
		return common.NewErrNotFound("sample %d not found", sampleID)
	}
	sample.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.samples[sampleID] = sample
	return nil
}

// --- individuals ---

func (db *InMemoryCatalogDatabase) CreateIndividual(ctx context.Context, individual model.Individual) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[individual.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", individual.StudyID)
	}
	for _, i := range db.individuals {
		if i.StudyID == individual.StudyID && i.Name == individual.Name && i.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("individual '%s' already exists in study %d", individual.Name, individual.StudyID)
		}
	}
	db.individuals[individual.ID] = individual
	return nil
}

func (db *InMemoryCatalogDatabase) GetIndividual(ctx context.Context, individualID int) (model.Individual, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	individual, exists := db.individuals[individualID]
	if !exists {
		return model.Individual{}, common.NewErrNotFound("individual %d not found", individualID)
	}
	return individual, nil
}

func (db *InMemoryCatalogDatabase) FindIndividualByName(ctx context.Context, studyID int, name string) (model.Individual, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, i := range db.individuals {
		if i.StudyID == studyID && i.Name == name && i.Status.Name != model.StatusDeleted {
			return i, nil
		}
	}
	return model.Individual{}, common.NewErrNotFound("individual '%s' not found in study %d", name, studyID)
}

func (db *InMemoryCatalogDatabase) ListIndividuals(ctx context.Context, studyID int) ([]model.Individual, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var individuals []model.Individual
	for _, i := range db.individuals {
		if i.StudyID == studyID && i.Status.Name != model.StatusDeleted {
			individuals = append(individuals, i)
		}
	}
	sort.Slice(individuals, func(i, j int) bool { return individuals[i].ID < individuals[j].ID })
	return individuals, nil
}

func (db *InMemoryCatalogDatabase) UpdateIndividual(ctx context.Context, individual model.Individual) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.individuals[individual.ID]; !exists {
		return common.NewErrNotFound("individual %d not found", individual.ID)
	}
	db.individuals[individual.ID] = individual
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteIndividual(ctx context.Context, individualID int) error {
	return db.setIndividualStatus(individualID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreIndividual(ctx context.Context, individualID int) error {
	return db.setIndividualStatus(individualID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setIndividualStatus(individualID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	individual, exists := db.individuals[individualID]
	if !exists {
		return common.NewErrNotFound("individual %d not found", individualID)
	}
	individual.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.individuals[individualID] = individual
	return nil
}

// --- cohorts ---

func (db *InMemoryCatalogDatabase) CreateCohort(ctx context.Context, cohort model.Cohort) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[cohort.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", cohort.StudyID)
	}
	for _, c := range db.cohorts {
		if c.StudyID == cohort.StudyID && c.Name == cohort.Name && c.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("cohort '%s' already exists in study %d", cohort.Name, cohort.StudyID)
		}
	}
	db.cohorts[cohort.ID] = cohort
	return nil
}

func (db *InMemoryCatalogDatabase) GetCohort(ctx context.Context, cohortID int) (model.Cohort, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	cohort, exists := db.cohorts[cohortID]
	if !exists {
		return model.Cohort{}, common.NewErrNotFound("cohort %d not found", cohortID)
	}
	return cohort, nil
}

func (db *InMemoryCatalogDatabase) FindCohortByName(ctx context.Context, studyID int, name string) (model.Cohort, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.cohorts {
		if c.StudyID == studyID && c.Name == name && c.Status.Name != model.StatusDeleted {
			return c, nil
		}
	}
	return model.Cohort{}, common.NewErrNotFound("cohort '%s' not found in study %d", name, studyID)
}

func (db *InMemoryCatalogDatabase) ListCohorts(ctx context.Context, studyID int) ([]model.Cohort, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var cohorts []model.Cohort
	for _, c := range db.cohorts {
		if c.StudyID == studyID && c.Status.Name != model.StatusDeleted {
			cohorts = append(cohorts, c)
		}
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].ID < cohorts[j].ID })
	return cohorts, nil
}

func (db *InMemoryCatalogDatabase) UpdateCohort(ctx context.Context, cohort model.Cohort) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.cohorts[cohort.ID]; !exists {
		return common.NewErrNotFound("cohort %d not found", cohort.ID)
	}
	db.cohorts[cohort.ID] = cohort
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteCohort(ctx context.Context, cohortID int) error {
	return db.setCohortStatus(cohortID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreCohort(ctx context.Context, cohortID int) error {
	return db.setCohortStatus(cohortID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setCohortStatus(cohortID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cohort, exists := db.cohorts[cohortID]
	if !exists {
		return common.NewErrNotFound("cohort %d not found", cohortID)
	}
	cohort.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.cohorts[cohortID] = cohort
	return nil
}

// --- datasets ---

func (db *InMemoryCatalogDatabase) CreateDataset(ctx context.Context, dataset model.Dataset) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[dataset.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", dataset.StudyID)
	}
	for _, d := range db.datasets {
		if d.StudyID == dataset.StudyID && d.Name == dataset.Name && d.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("dataset '%s' already exists in study %d", dataset.Name, dataset.StudyID)
		}
	}
	db.datasets[dataset.ID] = dataset
	return nil
}

func (db *InMemoryCatalogDatabase) GetDataset(ctx context.Context, datasetID int) (model.Dataset, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	dataset, exists := db.datasets[datasetID]
	if !exists {
		return model.Dataset{}, common.NewErrNotFound("dataset %d not found", datasetID)
	}
	return dataset, nil
}

func (db *InMemoryCatalogDatabase) FindDatasetByName(ctx context.Context, studyID int, name string) (model.Dataset, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, d := range db.datasets {
		if d.StudyID == studyID && d.Name == name && d.Status.Name != model.StatusDeleted {
			return d, nil
		}
	}
	return model.Dataset{}, common.NewErrNotFound("dataset '%s' not found in study %d", name, studyID)
}

func (db *InMemoryCatalogDatabase) ListDatasets(ctx context.Context, studyID int) ([]model.Dataset, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var datasets []model.Dataset
	for _, d := range db.datasets {
		if d.StudyID == studyID && d.Status.Name != model.StatusDeleted {
			datasets = append(datasets, d)
		}
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID < datasets[j].ID })
	return datasets, nil
}

func (db *InMemoryCatalogDatabase) UpdateDataset(ctx context.Context, dataset model.Dataset) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.datasets[dataset.ID]; !exists {
		return common.NewErrNotFound("dataset %d not found", dataset.ID)
	}
	db.datasets[dataset.ID] = dataset
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteDataset(ctx context.Context, datasetID int) error {
	return db.setDatasetStatus(datasetID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreDataset(ctx context.Context, datasetID int) error {
	return db.setDatasetStatus(datasetID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setDatasetStatus(datasetID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	dataset, exists := db.datasets[datasetID]
	if !exists {
		return common.NewErrNotFound("dataset %d not found", datasetID)
	}
	dataset.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.datasets[datasetID] = dataset
	return nil
}

// --- panels ---

func (db *InMemoryCatalogDatabase) CreatePanel(ctx context.Context, panel model.DiseasePanel) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[panel.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", panel.StudyID)
	}
	for _, p := range db.panels {
		if p.StudyID == panel.StudyID && p.Name == panel.Name && p.Status.Name != model.StatusDeleted {
			return common.NewErrPrecondition("panel '%s' already exists in study %d", panel.Name, panel.StudyID)
		}
	}
	db.panels[panel.ID] = panel
	return nil
}

func (db *InMemoryCatalogDatabase) GetPanel(ctx context.Context, panelID int) (model.DiseasePanel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	panel, exists := db.panels[panelID]
	if !exists {
		return model.DiseasePanel{}, common.NewErrNotFound("panel %d not found", panelID)
	}
	return panel, nil
}

func (db *InMemoryCatalogDatabase) FindPanelByName(ctx context.Context, studyID int, name string) (model.DiseasePanel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, p := range db.panels {
		if p.StudyID == studyID && p.Name == name && p.Status.Name != model.StatusDeleted {
			return p, nil
		}
	}
	return model.DiseasePanel{}, common.NewErrNotFound("panel '%s' not found in study %d", name, studyID)
}

func (db *InMemoryCatalogDatabase) ListPanels(ctx context.Context, studyID int) ([]model.DiseasePanel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var panels []model.DiseasePanel
	for _, p := range db.panels {
		if p.StudyID == studyID && p.Status.Name != model.StatusDeleted {
			panels = append(panels, p)
		}
	}
	sort.Slice(panels, func(i, j int) bool { return panels[i].ID < panels[j].ID })
	return panels, nil
}

func (db *InMemoryCatalogDatabase) UpdatePanel(ctx context.Context, panel model.DiseasePanel) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.panels[panel.ID]; !exists {
		return common.NewErrNotFound("panel %d not found", panel.ID)
	}
	db.panels[panel.ID] = panel
	return nil
}

func (db *InMemoryCatalogDatabase) DeletePanel(ctx context.Context, panelID int) error {
	return db.setPanelStatus(panelID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestorePanel(ctx context.Context, panelID int) error {
	return db.setPanelStatus(panelID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setPanelStatus(panelID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	panel, exists := db.panels[panelID]
	if !exists {
		return common.NewErrNotFound("panel %d not found", panelID)
	}
	panel.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.panels[panelID] = panel
	return nil
}

// --- jobs ---

func (db *InMemoryCatalogDatabase) CreateJob(ctx context.Context, job model.Job) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.studies[job.StudyID]; !exists {
		return common.NewErrNotFound("study %d not found", job.StudyID)
	}
	db.jobs[job.ID] = job
	return nil
}

func (db *InMemoryCatalogDatabase) GetJob(ctx context.Context, jobID int) (model.Job, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	job, exists := db.jobs[jobID]
	if !exists {
		return model.Job{}, common.NewErrNotFound("job %d not found", jobID)
	}
	return job, nil
}

func (db *InMemoryCatalogDatabase) FindJobByName(ctx context.Context, studyID int, name string) (model.Job, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, j := range db.jobs {
		if j.StudyID == studyID && j.Name == name && j.Status.Name != model.StatusDeleted {
			return j, nil
		}
	}
	return model.Job{}, common.NewErrNotFound("job '%s' not found in study %d", name, studyID)
}

func (db *InMemoryCatalogDatabase) ListJobs(ctx context.Context, studyID int, filter persistence.JobFilter) ([]model.Job, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var jobs []model.Job
	for _, j := range db.jobs {
		if j.StudyID != studyID || j.Status.Name == model.StatusDeleted {
			continue
		}
		if filter.Name != "" && j.Name != filter.Name {
			continue
		}
		if filter.ToolName != "" && j.ToolName != filter.ToolName {
			continue
		}
		if filter.ExecutionStatus != "" && j.ExecutionStatus != filter.ExecutionStatus {
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (db *InMemoryCatalogDatabase) UpdateJob(ctx context.Context, job model.Job) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.jobs[job.ID]; !exists {
		return common.NewErrNotFound("job %d not found", job.ID)
	}
	db.jobs[job.ID] = job
	return nil
}

func (db *InMemoryCatalogDatabase) DeleteJob(ctx context.Context, jobID int) error {
	return db.setJobStatus(jobID, model.StatusDeleted)
}

func (db *InMemoryCatalogDatabase) RestoreJob(ctx context.Context, jobID int) error {
	return db.setJobStatus(jobID, model.StatusReady)
}

func (db *InMemoryCatalogDatabase) setJobStatus(jobID int, status string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	job, exists := db.jobs[jobID]
	if !exists {
		return common.NewErrNotFound("job %d not found", jobID)
	}
	job.Status = model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	db.jobs[jobID] = job
	return nil
}
