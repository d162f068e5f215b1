// Package persistence defines the catalog database adaptor. Implementations
// live next to it (MongoDB) and under inmemory/ for tests.
package persistence

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/model"
)

// JobFilter narrows job listings. Zero values match everything.
type JobFilter struct {
	Name            string
	ToolName        string
	ExecutionStatus string
}

// UserDatabase handles account documents. User ids are strings and never
// collide with the numeric entity id space.
type UserDatabase interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)
	UpdateUser(ctx context.Context, user model.User) error
	DeleteUser(ctx context.Context, userID string) error
}

type ProjectDatabase interface {
	CreateProject(ctx context.Context, project model.Project) error
	GetProject(ctx context.Context, projectID int) (model.Project, error)
	FindProjectByAlias(ctx context.Context, ownerID, alias string) (model.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error)
	UpdateProject(ctx context.Context, project model.Project) error
	DeleteProject(ctx context.Context, projectID int) error
}

type StudyDatabase interface {
	CreateStudy(ctx context.Context, study model.Study) error
	GetStudy(ctx context.Context, studyID int) (model.Study, error)
	FindStudyByAlias(ctx context.Context, projectID int, alias string) (model.Study, error)
	ListStudies(ctx context.Context) ([]model.Study, error)
	ListStudiesByProject(ctx context.Context, projectID int) ([]model.Study, error)
	UpdateStudy(ctx context.Context, study model.Study) error
	DeleteStudy(ctx context.Context, studyID int) error
	RestoreStudy(ctx context.Context, studyID int) error

	// GetStudyOwner resolves the study's project owner, the principal that
	// bypasses every ACL check inside the study.
	GetStudyOwner(ctx context.Context, studyID int) (string, error)
}

// GroupDatabase mutates the groups embedded on a study document.
type GroupDatabase interface {
	CreateGroup(ctx context.Context, studyID int, group model.Group) error
	GetGroups(ctx context.Context, studyID int) ([]model.Group, error)
	GetGroupsForUser(ctx context.Context, studyID int, userID string) ([]model.Group, error)
	AddGroupMember(ctx context.Context, studyID int, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, studyID int, groupID, userID string) error
	DeleteGroup(ctx context.Context, studyID int, groupID string) error
}

type FileDatabase interface {
	CreateFile(ctx context.Context, file model.File) error
	GetFile(ctx context.Context, fileID int) (model.File, error)
	FindFileByPath(ctx context.Context, studyID int, path string) (model.File, error)
	ListFiles(ctx context.Context, studyID int) ([]model.File, error)
	ListFilesUnderPath(ctx context.Context, studyID int, pathPrefix string) ([]model.File, error)
	UpdateFile(ctx context.Context, file model.File) error
	DeleteFile(ctx context.Context, fileID int) error
	RestoreFile(ctx context.Context, fileID int) error
}

type SampleDatabase interface {
	CreateSample(ctx context.Context, sample model.Sample) error
	GetSample(ctx context.Context, sampleID int) (model.Sample, error)
	FindSampleByName(ctx context.Context, studyID int, name string) (model.Sample, error)
	ListSamples(ctx context.Context, studyID int) ([]model.Sample, error)
	UpdateSample(ctx context.Context, sample model.Sample) error
	DeleteSample(ctx context.Context, sampleID int) error
	RestoreSample(ctx context.Context, sampleID int) error
}

type IndividualDatabase interface {
	CreateIndividual(ctx context.Context, individual model.Individual) error
	GetIndividual(ctx context.Context, individualID int) (model.Individual, error)
	FindIndividualByName(ctx context.Context, studyID int, name string) (model.Individual, error)
	ListIndividuals(ctx context.Context, studyID int) ([]model.Individual, error)
	UpdateIndividual(ctx context.Context, individual model.Individual) error
	DeleteIndividual(ctx context.Context, individualID int) error
	RestoreIndividual(ctx context.Context, individualID int) error
}

type CohortDatabase interface {
	CreateCohort(ctx context.Context, cohort model.Cohort) error
	GetCohort(ctx context.Context, cohortID int) (model.Cohort, error)
	FindCohortByName(ctx context.Context, studyID int, name string) (model.Cohort, error)
	ListCohorts(ctx context.Context, studyID int) ([]model.Cohort, error)
	UpdateCohort(ctx context.Context, cohort model.Cohort) error
	DeleteCohort(ctx context.Context, cohortID int) error
	RestoreCohort(ctx context.Context, cohortID int) error
}

type DatasetDatabase interface {
	CreateDataset(ctx context.Context, dataset model.Dataset) error
	GetDataset(ctx context.Context, datasetID int) (model.Dataset, error)
	FindDatasetByName(ctx context.Context, studyID int, name string) (model.Dataset, error)
	ListDatasets(ctx context.Context, studyID int) ([]model.Dataset, error)
	UpdateDataset(ctx context.Context, dataset model.Dataset) error
	DeleteDataset(ctx context.Context, datasetID int) error
	RestoreDataset(ctx context.Context, datasetID int) error
}

type PanelDatabase interface {
	CreatePanel(ctx context.Context, panel model.DiseasePanel) error
	GetPanel(ctx context.Context, panelID int) (model.DiseasePanel, error)
	FindPanelByName(ctx context.Context, studyID int, name string) (model.DiseasePanel, error)
	ListPanels(ctx context.Context, studyID int) ([]model.DiseasePanel, error)
	UpdatePanel(ctx context.Context, panel model.DiseasePanel) error
	DeletePanel(ctx context.Context, panelID int) error
	RestorePanel(ctx context.Context, panelID int) error
}

type JobDatabase interface {
	CreateJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, jobID int) (model.Job, error)
	FindJobByName(ctx context.Context, studyID int, name string) (model.Job, error)
	ListJobs(ctx context.Context, studyID int, filter JobFilter) ([]model.Job, error)
	UpdateJob(ctx context.Context, job model.Job) error
	DeleteJob(ctx context.Context, jobID int) error
	RestoreJob(ctx context.Context, jobID int) error
}

// AclDatabase mutates the ACL entries embedded on entity documents. All
// methods keep at most one entry per member per entity.
type AclDatabase interface {
	// GetAcls returns the entries whose member is in members, in no
	// particular order. Unknown members are simply absent; an empty member
	// list returns every entry.
	GetAcls(ctx context.Context, kind model.Kind, entityID int, members []string) ([]model.AclEntry, error)

	// GetFileAclsByPaths bulk-loads the ACL entries of the files at the
	// given study-relative paths, restricted to members. Paths without a
	// file document are absent from the result.
	GetFileAclsByPaths(ctx context.Context, studyID int, paths []string, members []string) (map[string][]model.AclEntry, error)

	// CreateAcl inserts a new entry and fails with Precondition when the
	// member already holds one.
	CreateAcl(ctx context.Context, kind model.Kind, entityID int, entry model.AclEntry) error

	// SetAclsToMember replaces the member's permission list.
	SetAclsToMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) error

	// AddAclsToMember unions permissions into the member's entry and
	// returns the resulting list.
	AddAclsToMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) ([]model.Permission, error)

	// RemoveAclsFromMember subtracts permissions from the member's entry
	// and returns the resulting list.
	RemoveAclsFromMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) ([]model.Permission, error)

	// RemoveAcl drops the member's entry entirely, NotFound when absent.
	RemoveAcl(ctx context.Context, kind model.Kind, entityID int, member string) error
}

// DaemonAclDatabase is the separate per-study table consulted for the admin
// daemon. Admin rights never live on entity or study documents.
type DaemonAclDatabase interface {
	GetDaemonAcl(ctx context.Context, studyID int, member string) (model.AclEntry, bool, error)
	SetDaemonAcl(ctx context.Context, studyID int, entry model.AclEntry) error
	RemoveDaemonAcl(ctx context.Context, studyID int, member string) error
}

// IDGenerator hands out catalog-wide numeric ids. The sequence starts above
// the configured offset so ids never collide with names in mixed
// identifiers.
type IDGenerator interface {
	NextID(ctx context.Context) (int, error)
}

// CatalogDatabase is the full adaptor the managers are built on.
type CatalogDatabase interface {
	UserDatabase
	ProjectDatabase
	StudyDatabase
	GroupDatabase
	FileDatabase
	SampleDatabase
	IndividualDatabase
	CohortDatabase
	DatasetDatabase
	PanelDatabase
	JobDatabase
	AclDatabase
	DaemonAclDatabase
	IDGenerator

	// CheckID verifies an entity of the kind exists under the id.
	CheckID(ctx context.Context, kind model.Kind, entityID int) error

	Close(ctx context.Context) error
}
