// Package io provisions the catalog workspace: per-user directories, study
// trees and job output directories. The catalog layer never touches the
// filesystem or object store directly; it goes through a Manager.
package io

import (
	"context"
	"fmt"

	"github.com/nicholsn/opencga/internal/common"
)

// Manager abstracts the workspace backend. Paths handed to CreateFolder
// and DeleteFile are study-relative, slash separated.
type Manager interface {
	CreateUser(ctx context.Context, userID string) error
	CreateStudy(ctx context.Context, userID string, projectID, studyID int) error
	CreateFolder(ctx context.Context, userID string, projectID, studyID int, path string) error
	CreateJobOutDir(ctx context.Context, userID string, projectID, studyID, jobID int) (string, error)
	DeleteFile(ctx context.Context, userID string, projectID, studyID int, path string) error
	Exists(ctx context.Context, userID string, projectID, studyID int, path string) (bool, error)
}

// NewManager builds the backend selected by the configuration.
func NewManager(cfg *common.Config) (Manager, error) {
	switch cfg.IO.Backend {
	case "", "posix":
		return NewPosixManager(cfg.Catalog.RootDir)
	case "s3":
		return NewS3Manager(context.Background(), cfg.IO.S3)
	default:
		return nil, common.NewErrInvalidArgument("unknown io backend '%s'", cfg.IO.Backend)
	}
}

// studyPath is the canonical workspace layout shared by every backend:
// users/{user}/projects/{project}/{study}.
func studyPath(userID string, projectID, studyID int) string {
	return fmt.Sprintf("users/%s/projects/%d/%d", userID, projectID, studyID)
}

func userPath(userID string) string {
	return fmt.Sprintf("users/%s", userID)
}

func jobPath(userID string, projectID, studyID, jobID int) string {
	return fmt.Sprintf("%s/jobs/%d", studyPath(userID, projectID, studyID), jobID)
}
