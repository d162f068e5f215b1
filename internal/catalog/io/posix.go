package io

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicholsn/opencga/internal/common"
)

// PosixManager lays the workspace out as directories under a root dir.
type PosixManager struct {
	root string
}

func NewPosixManager(root string) (*PosixManager, error) {
	if root == "" {
		return nil, common.NewErrInvalidArgument("catalog.rootDir is required for the posix backend")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, common.NewInternalServerError(err, "error creating the workspace root")
	}
	return &PosixManager{root: root}, nil
}

// resolve joins study-relative slash paths onto the root and rejects any
// path escaping the workspace.
func (m *PosixManager) resolve(parts ...string) (string, error) {
	full := filepath.Join(append([]string{m.root}, parts...)...)
	if !strings.HasPrefix(full, filepath.Clean(m.root)+string(os.PathSeparator)) && full != filepath.Clean(m.root) {
		return "", common.NewErrInvalidArgument("path escapes the workspace root")
	}
	return full, nil
}

func (m *PosixManager) CreateUser(ctx context.Context, userID string) error {
	return m.mkdir(userPath(userID))
}

func (m *PosixManager) CreateStudy(ctx context.Context, userID string, projectID, studyID int) error {
	return m.mkdir(studyPath(userID, projectID, studyID))
}

func (m *PosixManager) CreateFolder(ctx context.Context, userID string, projectID, studyID int, path string) error {
	return m.mkdir(studyPath(userID, projectID, studyID) + "/" + path)
}

func (m *PosixManager) CreateJobOutDir(ctx context.Context, userID string, projectID, studyID, jobID int) (string, error) {
	rel := jobPath(userID, projectID, studyID, jobID)
	if err := m.mkdir(rel); err != nil {
		return "", err
	}
	return filepath.Join(m.root, filepath.FromSlash(rel)), nil
}

func (m *PosixManager) mkdir(rel string) error {
	full, err := m.resolve(filepath.FromSlash(rel))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return common.NewInternalServerError(err, "error creating directory %s", rel)
	}
	return nil
}

func (m *PosixManager) DeleteFile(ctx context.Context, userID string, projectID, studyID int, path string) error {
	full, err := m.resolve(filepath.FromSlash(studyPath(userID, projectID, studyID) + "/" + path))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return common.NewInternalServerError(err, "error deleting %s", path)
	}
	return nil
}

func (m *PosixManager) Exists(ctx context.Context, userID string, projectID, studyID int, path string) (bool, error) {
	full, err := m.resolve(filepath.FromSlash(studyPath(userID, projectID, studyID) + "/" + path))
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(full)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, common.NewInternalServerError(statErr, "error checking %s", path)
}
