package model

import (
	"sort"
	"strings"

	"github.com/nicholsn/opencga/internal/common"
)

// Kind names an ACL-bearing entity family.
type Kind string

const (
	KindStudy      Kind = "study"
	KindFile       Kind = "file"
	KindSample     Kind = "sample"
	KindIndividual Kind = "individual"
	KindCohort     Kind = "cohort"
	KindDataset    Kind = "dataset"
	KindPanel      Kind = "panel"
	KindJob        Kind = "job"
)

// Permission is one right from an entity kind's enumeration. Entity kinds
// share names (VIEW, UPDATE, ...) while the study enumeration uses the
// suffixed forms (VIEW_FILES, ...).
type Permission string

// Permissions shared by every non-study kind.
const (
	View   Permission = "VIEW"
	Update Permission = "UPDATE"
	Delete Permission = "DELETE"
	Share  Permission = "SHARE"
)

// File-only permissions.
const (
	ViewHeader  Permission = "VIEW_HEADER"
	ViewContent Permission = "VIEW_CONTENT"
	Download    Permission = "DOWNLOAD"
)

// Annotation permissions for samples, individuals and cohorts.
const (
	CreateAnnotations Permission = "CREATE_ANNOTATIONS"
	ViewAnnotations   Permission = "VIEW_ANNOTATIONS"
	UpdateAnnotations Permission = "UPDATE_ANNOTATIONS"
	DeleteAnnotations Permission = "DELETE_ANNOTATIONS"
)

// Study permissions. Each entity family mirrors the study enumeration with
// CREATE/VIEW/UPDATE/DELETE/SHARE forms plus the file and annotation extras.
const (
	ViewStudy   Permission = "VIEW_STUDY"
	UpdateStudy Permission = "UPDATE_STUDY"
	ShareStudy  Permission = "SHARE_STUDY"

	CreateVariableSet             Permission = "CREATE_VARIABLE_SET"
	ViewVariableSet               Permission = "VIEW_VARIABLE_SET"
	UpdateVariableSet             Permission = "UPDATE_VARIABLE_SET"
	DeleteVariableSet             Permission = "DELETE_VARIABLE_SET"
	ConfidentialVariableSetAccess Permission = "CONFIDENTIAL_VARIABLE_SET_ACCESS"

	CreateFiles      Permission = "CREATE_FILES"
	ViewFiles        Permission = "VIEW_FILES"
	ViewFileHeaders  Permission = "VIEW_FILE_HEADERS"
	ViewFileContents Permission = "VIEW_FILE_CONTENTS"
	DownloadFiles    Permission = "DOWNLOAD_FILES"
	UpdateFiles      Permission = "UPDATE_FILES"
	DeleteFiles      Permission = "DELETE_FILES"
	ShareFiles       Permission = "SHARE_FILES"

	CreateJobs Permission = "CREATE_JOBS"
	ViewJobs   Permission = "VIEW_JOBS"
	UpdateJobs Permission = "UPDATE_JOBS"
	DeleteJobs Permission = "DELETE_JOBS"
	ShareJobs  Permission = "SHARE_JOBS"

	CreateSamples           Permission = "CREATE_SAMPLES"
	ViewSamples             Permission = "VIEW_SAMPLES"
	UpdateSamples           Permission = "UPDATE_SAMPLES"
	DeleteSamples           Permission = "DELETE_SAMPLES"
	ShareSamples            Permission = "SHARE_SAMPLES"
	CreateSampleAnnotations Permission = "CREATE_SAMPLE_ANNOTATIONS"
	ViewSampleAnnotations   Permission = "VIEW_SAMPLE_ANNOTATIONS"
	UpdateSampleAnnotations Permission = "UPDATE_SAMPLE_ANNOTATIONS"
	DeleteSampleAnnotations Permission = "DELETE_SAMPLE_ANNOTATIONS"

	CreateIndividuals           Permission = "CREATE_INDIVIDUALS"
	ViewIndividuals             Permission = "VIEW_INDIVIDUALS"
	UpdateIndividuals           Permission = "UPDATE_INDIVIDUALS"
	DeleteIndividuals           Permission = "DELETE_INDIVIDUALS"
	ShareIndividuals            Permission = "SHARE_INDIVIDUALS"
	CreateIndividualAnnotations Permission = "CREATE_INDIVIDUAL_ANNOTATIONS"
	ViewIndividualAnnotations   Permission = "VIEW_INDIVIDUAL_ANNOTATIONS"
	UpdateIndividualAnnotations Permission = "UPDATE_INDIVIDUAL_ANNOTATIONS"
	DeleteIndividualAnnotations Permission = "DELETE_INDIVIDUAL_ANNOTATIONS"

	CreateCohorts           Permission = "CREATE_COHORTS"
	ViewCohorts             Permission = "VIEW_COHORTS"
	UpdateCohorts           Permission = "UPDATE_COHORTS"
	DeleteCohorts           Permission = "DELETE_COHORTS"
	ShareCohorts            Permission = "SHARE_COHORTS"
	CreateCohortAnnotations Permission = "CREATE_COHORT_ANNOTATIONS"
	ViewCohortAnnotations   Permission = "VIEW_COHORT_ANNOTATIONS"
	UpdateCohortAnnotations Permission = "UPDATE_COHORT_ANNOTATIONS"
	DeleteCohortAnnotations Permission = "DELETE_COHORT_ANNOTATIONS"

	CreateDatasets Permission = "CREATE_DATASETS"
	ViewDatasets   Permission = "VIEW_DATASETS"
	UpdateDatasets Permission = "UPDATE_DATASETS"
	DeleteDatasets Permission = "DELETE_DATASETS"
	ShareDatasets  Permission = "SHARE_DATASETS"

	CreatePanels Permission = "CREATE_PANELS"
	ViewPanels   Permission = "VIEW_PANELS"
	UpdatePanels Permission = "UPDATE_PANELS"
	DeletePanels Permission = "DELETE_PANELS"
	SharePanels  Permission = "SHARE_PANELS"
)

// AclEntry grants one member a permission set on one entity. Member is a
// user id, "@group", "*" or "anonymous". An entity holds at most one entry
// per member.
type AclEntry struct {
	Member      string       `bson:"member" json:"member"`
	Permissions []Permission `bson:"permissions" json:"permissions"`
}

// Has reports whether the entry carries the permission.
func (e AclEntry) Has(p Permission) bool {
	for _, q := range e.Permissions {
		if q == p {
			return true
		}
	}
	return false
}

var basePermissions = []Permission{View, Update, Delete, Share}

var filePermissions = append([]Permission{ViewHeader, ViewContent, Download}, basePermissions...)

var annotablePermissions = append([]Permission{CreateAnnotations, ViewAnnotations, UpdateAnnotations, DeleteAnnotations}, basePermissions...)

var studyPermissions = []Permission{
	ViewStudy, UpdateStudy, ShareStudy,
	CreateVariableSet, ViewVariableSet, UpdateVariableSet, DeleteVariableSet,
	ConfidentialVariableSetAccess,
	CreateFiles, ViewFiles, ViewFileHeaders, ViewFileContents, DownloadFiles,
	UpdateFiles, DeleteFiles, ShareFiles,
	CreateJobs, ViewJobs, UpdateJobs, DeleteJobs, ShareJobs,
	CreateSamples, ViewSamples, UpdateSamples, DeleteSamples, ShareSamples,
	CreateSampleAnnotations, ViewSampleAnnotations, UpdateSampleAnnotations, DeleteSampleAnnotations,
	CreateIndividuals, ViewIndividuals, UpdateIndividuals, DeleteIndividuals, ShareIndividuals,
	CreateIndividualAnnotations, ViewIndividualAnnotations, UpdateIndividualAnnotations, DeleteIndividualAnnotations,
	CreateCohorts, ViewCohorts, UpdateCohorts, DeleteCohorts, ShareCohorts,
	CreateCohortAnnotations, ViewCohortAnnotations, UpdateCohortAnnotations, DeleteCohortAnnotations,
	CreateDatasets, ViewDatasets, UpdateDatasets, DeleteDatasets, ShareDatasets,
	CreatePanels, ViewPanels, UpdatePanels, DeletePanels, SharePanels,
}

var permissionsByKind = map[Kind][]Permission{
	KindStudy:      studyPermissions,
	KindFile:       filePermissions,
	KindSample:     annotablePermissions,
	KindIndividual: annotablePermissions,
	KindCohort:     annotablePermissions,
	KindDataset:    basePermissions,
	KindPanel:      basePermissions,
	KindJob:        basePermissions,
}

// PermissionsFor returns the full permission enumeration of a kind.
func PermissionsFor(kind Kind) []Permission {
	perms := permissionsByKind[kind]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// ParsePermissions validates a comma separable list of raw permission names
// against a kind's enumeration, dropping duplicates and keeping the
// enumeration order stable.
func ParsePermissions(kind Kind, raw []string) ([]Permission, error) {
	valid := permissionsByKind[kind]
	if valid == nil {
		return nil, common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
	index := make(map[Permission]int, len(valid))
	for i, p := range valid {
		index[p] = i
	}
	seen := make(map[Permission]bool, len(raw))
	var perms []Permission
	for _, r := range raw {
		for _, token := range strings.Split(r, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			p := Permission(strings.ToUpper(token))
			if _, ok := index[p]; !ok {
				return nil, common.NewErrInvalidArgument("permission '%s' is not valid for %s entries", token, kind)
			}
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	sort.Slice(perms, func(i, j int) bool { return index[perms[i]] < index[perms[j]] })
	return perms, nil
}

// derivedPermissions maps, per kind, a study-level permission onto the
// entity-level permission it implies. Study permissions absent from a kind's
// row grant nothing on that kind.
var derivedPermissions = map[Kind]map[Permission]Permission{
	KindFile: {
		ViewFiles:        View,
		ViewFileHeaders:  ViewHeader,
		ViewFileContents: ViewContent,
		DownloadFiles:    Download,
		UpdateFiles:      Update,
		DeleteFiles:      Delete,
		ShareFiles:       Share,
	},
	KindJob: {
		ViewJobs:   View,
		UpdateJobs: Update,
		DeleteJobs: Delete,
		ShareJobs:  Share,
	},
	KindSample: {
		ViewSamples:             View,
		UpdateSamples:           Update,
		DeleteSamples:           Delete,
		ShareSamples:            Share,
		CreateSampleAnnotations: CreateAnnotations,
		ViewSampleAnnotations:   ViewAnnotations,
		UpdateSampleAnnotations: UpdateAnnotations,
		DeleteSampleAnnotations: DeleteAnnotations,
	},
	KindIndividual: {
		ViewIndividuals:             View,
		UpdateIndividuals:           Update,
		DeleteIndividuals:           Delete,
		ShareIndividuals:            Share,
		CreateIndividualAnnotations: CreateAnnotations,
		ViewIndividualAnnotations:   ViewAnnotations,
		UpdateIndividualAnnotations: UpdateAnnotations,
		DeleteIndividualAnnotations: DeleteAnnotations,
	},
	KindCohort: {
		ViewCohorts:             View,
		UpdateCohorts:           Update,
		DeleteCohorts:           Delete,
		ShareCohorts:            Share,
		CreateCohortAnnotations: CreateAnnotations,
		ViewCohortAnnotations:   ViewAnnotations,
		UpdateCohortAnnotations: UpdateAnnotations,
		DeleteCohortAnnotations: DeleteAnnotations,
	},
	KindDataset: {
		ViewDatasets:   View,
		UpdateDatasets: Update,
		DeleteDatasets: Delete,
		ShareDatasets:  Share,
	},
	KindPanel: {
		ViewPanels:   View,
		UpdatePanels: Update,
		DeletePanels: Delete,
		SharePanels:  Share,
	},
}

// DeriveEntryFromStudy projects a study-level ACL entry onto an entity kind
// through the derivation table. The projected entry keeps the member and may
// carry an empty permission list, which still counts as a decision.
func DeriveEntryFromStudy(kind Kind, study AclEntry) AclEntry {
	table := derivedPermissions[kind]
	derived := AclEntry{Member: study.Member, Permissions: []Permission{}}
	for _, p := range study.Permissions {
		if q, ok := table[p]; ok {
			derived.Permissions = append(derived.Permissions, q)
		}
	}
	return derived
}

// Study ACL template names accepted by the ACL mutator.
const (
	TemplateAdmin   = "admin"
	TemplateAnalyst = "analyst"
	TemplateLocked  = "locked"
)

var analystPermissions = []Permission{
	ViewStudy,
	CreateVariableSet, ViewVariableSet, UpdateVariableSet,
	CreateFiles, ViewFiles, ViewFileHeaders, ViewFileContents, DownloadFiles, UpdateFiles,
	CreateJobs, ViewJobs, UpdateJobs,
	CreateSamples, ViewSamples, UpdateSamples,
	CreateSampleAnnotations, ViewSampleAnnotations, UpdateSampleAnnotations,
	CreateIndividuals, ViewIndividuals, UpdateIndividuals,
	CreateIndividualAnnotations, ViewIndividualAnnotations, UpdateIndividualAnnotations,
	CreateCohorts, ViewCohorts, UpdateCohorts,
	CreateCohortAnnotations, ViewCohortAnnotations, UpdateCohortAnnotations,
	CreateDatasets, ViewDatasets, UpdateDatasets,
	CreatePanels, ViewPanels, UpdatePanels,
}

// TemplatePermissions expands a study ACL template name. The empty name
// behaves as "locked" so that members can be registered without rights.
func TemplatePermissions(template string) ([]Permission, error) {
	switch template {
	case TemplateAdmin:
		return PermissionsFor(KindStudy), nil
	case TemplateAnalyst:
		out := make([]Permission, len(analystPermissions))
		copy(out, analystPermissions)
		return out, nil
	case TemplateLocked, "":
		return []Permission{}, nil
	default:
		return nil, common.NewErrInvalidArgument("unknown ACL template '%s'", template)
	}
}

// IsGroupMember reports whether a member name references a study group.
func IsGroupMember(member string) bool {
	return strings.HasPrefix(member, "@")
}
