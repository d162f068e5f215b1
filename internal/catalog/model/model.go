// Package model defines the catalog entities, their lifecycle statuses, and
// the per-kind ACL permission enumerations with the study-level derivation
// table.
package model

// Reserved principals. Group members are referenced with the "@" prefix.
const (
	AnonymousUser = "anonymous"
	AdminUser     = "admin"
	AllUsers      = "*"
)

// Lifecycle status names shared by every entity kind.
const (
	StatusReady         = "READY"
	StatusTrashed       = "TRASHED"
	StatusPendingDelete = "PENDING_DELETE"
	StatusDeleted       = "DELETED"
	StatusInvalid       = "INVALID"
)

// File-only status names.
const (
	FileStatusStage   = "STAGE"
	FileStatusMissing = "MISSING"
	FileStatusRemoved = "REMOVED"
)

// Status records the lifecycle state of an entity. Transitions append a new
// value; Message explains automatic transitions such as INVALID.
type Status struct {
	Name    string `bson:"name" json:"name"`
	Date    string `bson:"date" json:"date"`
	Message string `bson:"message,omitempty" json:"message,omitempty"`
}

// User is a registered account. Users own projects; project ownership gives
// the owner an unconditional bypass over every ACL check inside it.
type User struct {
	ID         string         `bson:"id" json:"id"`
	Name       string         `bson:"name" json:"name"`
	Email      string         `bson:"email" json:"email"`
	Status     Status         `bson:"status" json:"status"`
	Attributes map[string]any `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// Project groups studies under one owner. Alias is unique per owner.
type Project struct {
	ID          int            `bson:"id" json:"id"`
	OwnerID     string         `bson:"ownerId" json:"ownerId"`
	Alias       string         `bson:"alias" json:"alias"`
	Name        string         `bson:"name" json:"name"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`
	Status      Status         `bson:"status" json:"status"`
	Attributes  map[string]any `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// Group is a named set of users inside a study. A user belongs to at most
// one group per study.
type Group struct {
	ID      string   `bson:"id" json:"id"`
	UserIDs []string `bson:"userIds" json:"userIds"`
}

// Study owns files, samples, individuals, cohorts, datasets, panels and
// jobs. ACL entries and groups are embedded on the study document.
type Study struct {
	ID           int            `bson:"id" json:"id"`
	ProjectID    int            `bson:"projectId" json:"projectId"`
	Alias        string         `bson:"alias" json:"alias"`
	Name         string         `bson:"name" json:"name"`
	Description  string         `bson:"description,omitempty" json:"description,omitempty"`
	Groups       []Group        `bson:"groups" json:"groups"`
	Acls         []AclEntry     `bson:"acls" json:"acls"`
	VariableSets []VariableSet  `bson:"variableSets,omitempty" json:"variableSets,omitempty"`
	Status       Status         `bson:"status" json:"status"`
	Attributes   map[string]any `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// FileType distinguishes regular files from folders.
type FileType string

const (
	FileTypeFile   FileType = "FILE"
	FileTypeFolder FileType = "DIRECTORY"
)

// File is a file or folder inside a study. Paths are study-relative; folder
// paths carry a trailing slash, the study root is the empty path.
type File struct {
	ID         int            `bson:"id" json:"id"`
	StudyID    int            `bson:"studyId" json:"studyId"`
	Name       string         `bson:"name" json:"name"`
	Path       string         `bson:"path" json:"path"`
	Type       FileType       `bson:"type" json:"type"`
	Format     string         `bson:"format,omitempty" json:"format,omitempty"`
	Bioformat  string         `bson:"bioformat,omitempty" json:"bioformat,omitempty"`
	URI        string         `bson:"uri,omitempty" json:"uri,omitempty"`
	External   bool           `bson:"external,omitempty" json:"external,omitempty"`
	Size       int64          `bson:"size,omitempty" json:"size,omitempty"`
	SampleIDs  []int          `bson:"sampleIds,omitempty" json:"sampleIds,omitempty"`
	Acls       []AclEntry     `bson:"acls" json:"acls"`
	Status     Status         `bson:"status" json:"status"`
	Attributes map[string]any `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// Sample is a biological sample, optionally linked to an individual.
type Sample struct {
	ID             int             `bson:"id" json:"id"`
	StudyID        int             `bson:"studyId" json:"studyId"`
	Name           string          `bson:"name" json:"name"`
	Source         string          `bson:"source,omitempty" json:"source,omitempty"`
	Description    string          `bson:"description,omitempty" json:"description,omitempty"`
	IndividualID   int             `bson:"individualId,omitempty" json:"individualId,omitempty"`
	Acls           []AclEntry      `bson:"acls" json:"acls"`
	AnnotationSets []AnnotationSet `bson:"annotationSets,omitempty" json:"annotationSets,omitempty"`
	Status         Status          `bson:"status" json:"status"`
}

// Individual is a subject samples belong to.
type Individual struct {
	ID             int             `bson:"id" json:"id"`
	StudyID        int             `bson:"studyId" json:"studyId"`
	Name           string          `bson:"name" json:"name"`
	FatherID       int             `bson:"fatherId,omitempty" json:"fatherId,omitempty"`
	MotherID       int             `bson:"motherId,omitempty" json:"motherId,omitempty"`
	Sex            string          `bson:"sex,omitempty" json:"sex,omitempty"`
	Acls           []AclEntry      `bson:"acls" json:"acls"`
	AnnotationSets []AnnotationSet `bson:"annotationSets,omitempty" json:"annotationSets,omitempty"`
	Status         Status          `bson:"status" json:"status"`
}

// Cohort is a named set of samples. Removing a member sample marks the
// cohort INVALID until its stats are recalculated.
type Cohort struct {
	ID             int             `bson:"id" json:"id"`
	StudyID        int             `bson:"studyId" json:"studyId"`
	Name           string          `bson:"name" json:"name"`
	Type           string          `bson:"type,omitempty" json:"type,omitempty"`
	SampleIDs      []int           `bson:"sampleIds" json:"sampleIds"`
	Acls           []AclEntry      `bson:"acls" json:"acls"`
	AnnotationSets []AnnotationSet `bson:"annotationSets,omitempty" json:"annotationSets,omitempty"`
	Status         Status          `bson:"status" json:"status"`
}

// Dataset is a named set of files.
type Dataset struct {
	ID      int        `bson:"id" json:"id"`
	StudyID int        `bson:"studyId" json:"studyId"`
	Name    string     `bson:"name" json:"name"`
	FileIDs []int      `bson:"fileIds" json:"fileIds"`
	Acls    []AclEntry `bson:"acls" json:"acls"`
	Status  Status     `bson:"status" json:"status"`
}

// DiseasePanel is a curated gene/region panel.
type DiseasePanel struct {
	ID          int        `bson:"id" json:"id"`
	StudyID     int        `bson:"studyId" json:"studyId"`
	Name        string     `bson:"name" json:"name"`
	Disease     string     `bson:"disease,omitempty" json:"disease,omitempty"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Genes       []string   `bson:"genes,omitempty" json:"genes,omitempty"`
	Regions     []string   `bson:"regions,omitempty" json:"regions,omitempty"`
	Acls        []AclEntry `bson:"acls" json:"acls"`
	Status      Status     `bson:"status" json:"status"`
}

// Job execution status names, reconciled against the scheduler bridge.
const (
	JobStatusPrepared = "PREPARED"
	JobStatusQueued   = "QUEUED"
	JobStatusRunning  = "RUNNING"
	JobStatusDone     = "DONE"
	JobStatusError    = "ERROR"
)

// Job describes a logical submission to the batch scheduler. SchedulerName
// is the name handed to the scheduler ("{tool}_{id}").
type Job struct {
	ID              int            `bson:"id" json:"id"`
	StudyID         int            `bson:"studyId" json:"studyId"`
	Name            string         `bson:"name" json:"name"`
	ToolName        string         `bson:"toolName" json:"toolName"`
	CommandLine     string         `bson:"commandLine,omitempty" json:"commandLine,omitempty"`
	OutDir          string         `bson:"outDir,omitempty" json:"outDir,omitempty"`
	Queue           string         `bson:"queue,omitempty" json:"queue,omitempty"`
	SchedulerName   string         `bson:"schedulerName,omitempty" json:"schedulerName,omitempty"`
	InputFileIDs    []int          `bson:"inputFileIds,omitempty" json:"inputFileIds,omitempty"`
	OutputFileIDs   []int          `bson:"outputFileIds,omitempty" json:"outputFileIds,omitempty"`
	ExecutionStatus string         `bson:"executionStatus" json:"executionStatus"`
	Visited         bool           `bson:"visited" json:"visited"`
	Date            string         `bson:"date,omitempty" json:"date,omitempty"`
	Acls            []AclEntry     `bson:"acls" json:"acls"`
	Status          Status         `bson:"status" json:"status"`
	Attributes      map[string]any `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// VariableSet declares the schema for annotation sets. Confidential sets are
// only visible with the study-level CONFIDENTIAL_VARIABLE_SET_ACCESS right.
type VariableSet struct {
	ID           int        `bson:"id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	Confidential bool       `bson:"confidential" json:"confidential"`
	Description  string     `bson:"description,omitempty" json:"description,omitempty"`
	Variables    []Variable `bson:"variables,omitempty" json:"variables,omitempty"`
}

// Variable is one field of a variable set.
type Variable struct {
	Name          string   `bson:"name" json:"name"`
	Type          string   `bson:"type" json:"type"`
	Required      bool     `bson:"required" json:"required"`
	AllowedValues []string `bson:"allowedValues,omitempty" json:"allowedValues,omitempty"`
}

// AnnotationSet holds values for one variable set on one entity.
type AnnotationSet struct {
	Name          string       `bson:"name" json:"name"`
	VariableSetID int          `bson:"variableSetId" json:"variableSetId"`
	Annotations   []Annotation `bson:"annotations" json:"annotations"`
	Date          string       `bson:"date,omitempty" json:"date,omitempty"`
}

// Annotation is one (name, value) pair of an annotation set.
type Annotation struct {
	Name  string `bson:"name" json:"name"`
	Value any    `bson:"value" json:"value"`
}
