package manager

import (
	"context"
	"strings"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// normalizePath cleans a study-relative file path: no leading slash, no
// duplicate separators, folders keep exactly one trailing slash.
func normalizePath(path string, folder bool) (string, error) {
	path = strings.TrimPrefix(path, "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if strings.Contains(path, "..") {
		return "", common.NewErrInvalidArgument("path '%s' may not contain '..'", path)
	}
	if folder && path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path, nil
}

// fileName is the last segment of a study-relative path.
func fileName(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// ensureParents creates any missing ancestor folders as directory documents.
// Each folder is registered STAGE, materialized in the workspace, and then
// flipped to READY.
func (c *Catalog) ensureParents(ctx context.Context, caller string, study model.Study, path string) error {
	parents := model.ParentPaths(path)
	for _, parent := range parents[:len(parents)-1] {
		if parent == "" {
			continue
		}
		_, err := c.db.FindFileByPath(ctx, study.ID, parent)
		if err == nil {
			continue
		}
		if !common.IsErrNotFound(err) {
			return err
		}
		if _, err := c.registerFolder(ctx, caller, study, parent); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) registerFolder(ctx context.Context, caller string, study model.Study, path string) (model.File, error) {
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.File{}, err
	}
	folder := model.File{
		ID:      id,
		StudyID: study.ID,
		Name:    fileName(path),
		Path:    path,
		Type:    model.FileTypeFolder,
		Status:  model.Status{Name: model.FileStatusStage, Date: common.GetCurrentTimestamp()},
	}
	if err := c.db.CreateFile(ctx, folder); err != nil {
		return model.File{}, err
	}
	owner, err := c.db.GetStudyOwner(ctx, study.ID)
	if err != nil {
		return model.File{}, err
	}
	if err := c.io.CreateFolder(ctx, owner, study.ProjectID, study.ID, path); err != nil {
		return model.File{}, err
	}
	folder.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.UpdateFile(ctx, folder); err != nil {
		return model.File{}, err
	}
	return folder, nil
}

// CreateFolder registers a folder, auto-creating missing parents.
func (c *Catalog) CreateFolder(ctx context.Context, caller string, studyID int, path string) (model.File, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateFiles); err != nil {
		return model.File{}, err
	}
	path, err := normalizePath(path, true)
	if err != nil {
		return model.File{}, err
	}
	if path == "" {
		return model.File{}, common.NewErrInvalidArgument("folder path is required")
	}
	study, err := c.db.GetStudy(ctx, studyID)
	if err != nil {
		return model.File{}, err
	}
	if _, err := c.db.FindFileByPath(ctx, studyID, path); err == nil {
		return model.File{}, common.NewErrConflict("path '%s' already exists in study %d", path, studyID)
	} else if !common.IsErrNotFound(err) {
		return model.File{}, err
	}
	if err := c.ensureParents(ctx, caller, study, path); err != nil {
		return model.File{}, err
	}
	folder, err := c.registerFolder(ctx, caller, study, path)
	if err != nil {
		return model.File{}, err
	}
	audit.Log(ctx, c.audit, caller, "file.create", "file", folder.ID, path)
	return folder, nil
}

// CreateFile registers a regular file document, auto-creating parents. The
// document enters STAGE and flips to READY once registration completes;
// content upload is outside the catalog's responsibility.
func (c *Catalog) CreateFile(ctx context.Context, caller string, studyID int, file model.File) (model.File, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateFiles); err != nil {
		return model.File{}, err
	}
	path, err := normalizePath(file.Path, false)
	if err != nil {
		return model.File{}, err
	}
	if path == "" || strings.HasSuffix(path, "/") {
		return model.File{}, common.NewErrInvalidArgument("file path '%s' is not a regular file path", file.Path)
	}
	study, err := c.db.GetStudy(ctx, studyID)
	if err != nil {
		return model.File{}, err
	}
	if _, err := c.db.FindFileByPath(ctx, studyID, path); err == nil {
		return model.File{}, common.NewErrConflict("path '%s' already exists in study %d", path, studyID)
	} else if !common.IsErrNotFound(err) {
		return model.File{}, err
	}
	if err := c.ensureParents(ctx, caller, study, path); err != nil {
		return model.File{}, err
	}

	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.File{}, err
	}
	file.ID = id
	file.StudyID = studyID
	file.Path = path
	file.Name = fileName(path)
	file.Type = model.FileTypeFile
	file.Status = model.Status{Name: model.FileStatusStage, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateFile(ctx, file); err != nil {
		return model.File{}, err
	}
	file.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.UpdateFile(ctx, file); err != nil {
		return model.File{}, err
	}
	audit.Log(ctx, c.audit, caller, "file.create", "file", id, path)
	return file, nil
}

// LinkFile registers an external file by URI without copying content.
func (c *Catalog) LinkFile(ctx context.Context, caller string, studyID int, path, uri string) (model.File, error) {
	if uri == "" {
		return model.File{}, common.NewErrInvalidArgument("link uri is required")
	}
	file, err := c.CreateFile(ctx, caller, studyID, model.File{Path: path, URI: uri, External: true})
	if err != nil {
		return model.File{}, err
	}
	audit.Log(ctx, c.audit, caller, "file.link", "file", file.ID, uri)
	return file, nil
}

// GetFile returns the file when the caller holds VIEW on it, resolved
// through the ancestor-path walk.
func (c *Catalog) GetFile(ctx context.Context, caller string, fileID int) (model.File, error) {
	file, err := c.db.GetFile(ctx, fileID)
	if err != nil {
		return model.File{}, err
	}
	if err := c.auth.CheckPermission(ctx, authorization.FileRef(file), caller, model.View); err != nil {
		return model.File{}, err
	}
	return file, nil
}

// ListFolder lists the files under a folder path, filtered by VIEW.
func (c *Catalog) ListFolder(ctx context.Context, caller string, studyID int, folderPath string) ([]model.File, error) {
	path, err := normalizePath(folderPath, true)
	if err != nil {
		return nil, err
	}
	files, err := c.db.ListFilesUnderPath(ctx, studyID, path)
	if err != nil {
		return nil, err
	}
	return c.auth.FilterFiles(ctx, caller, files)
}

// UpdateFile applies metadata changes (format, bioformat, attributes,
// sample links). Path and type are immutable here.
func (c *Catalog) UpdateFile(ctx context.Context, caller string, file model.File) (model.File, error) {
	current, err := c.db.GetFile(ctx, file.ID)
	if err != nil {
		return model.File{}, err
	}
	if err := c.auth.CheckPermission(ctx, authorization.FileRef(current), caller, model.Update); err != nil {
		return model.File{}, err
	}
	if file.Format != "" {
		current.Format = file.Format
	}
	if file.Bioformat != "" {
		current.Bioformat = file.Bioformat
	}
	if file.SampleIDs != nil {
		current.SampleIDs = file.SampleIDs
	}
	if file.Attributes != nil {
		current.Attributes = file.Attributes
	}
	if err := c.db.UpdateFile(ctx, current); err != nil {
		return model.File{}, err
	}
	audit.Log(ctx, c.audit, caller, "file.update", "file", current.ID, current.Path)
	return current, nil
}

// TrashFile soft-deletes: READY files move to TRASHED, external files to
// REMOVED (unlink). Folders trash their whole subtree.
func (c *Catalog) TrashFile(ctx context.Context, caller string, fileID int) error {
	file, err := c.db.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := c.auth.CheckPermission(ctx, authorization.FileRef(file), caller, model.Delete); err != nil {
		return err
	}
	if file.Status.Name != model.StatusReady {
		return common.NewErrPrecondition("file %d is %s, only READY files can be trashed", fileID, file.Status.Name)
	}

	targets := []model.File{file}
	if file.Type == model.FileTypeFolder {
		children, err := c.db.ListFilesUnderPath(ctx, file.StudyID, file.Path)
		if err != nil {
			return err
		}
		targets = append(targets, children...)
	}
	for _, target := range targets {
		next := model.StatusTrashed
		if target.External {
			next = model.FileStatusRemoved
		}
		target.Status = model.Status{Name: next, Date: common.GetCurrentTimestamp()}
		if err := c.db.UpdateFile(ctx, target); err != nil {
			return err
		}
		audit.Log(ctx, c.audit, caller, "file.trash", "file", target.ID, target.Path)
	}
	return nil
}

// DeleteFile finishes the status walk: a TRASHED or REMOVED document moves
// through PENDING_DELETE to DELETED and its workspace content is removed.
func (c *Catalog) DeleteFile(ctx context.Context, caller string, fileID int) error {
	file, err := c.db.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := c.auth.CheckPermission(ctx, authorization.FileRef(file), caller, model.Delete); err != nil {
		return err
	}
	if file.Status.Name != model.StatusTrashed && file.Status.Name != model.FileStatusRemoved {
		return common.NewErrPrecondition("file %d is %s, trash it before deleting", fileID, file.Status.Name)
	}

	file.Status = model.Status{Name: model.StatusPendingDelete, Date: common.GetCurrentTimestamp()}
	if err := c.db.UpdateFile(ctx, file); err != nil {
		return err
	}
	if !file.External {
		study, err := c.db.GetStudy(ctx, file.StudyID)
		if err != nil {
			return err
		}
		owner, err := c.db.GetStudyOwner(ctx, file.StudyID)
		if err != nil {
			return err
		}
		if err := c.io.DeleteFile(ctx, owner, study.ProjectID, study.ID, file.Path); err != nil {
			return err
		}
	}
	file.Status = model.Status{Name: model.StatusDeleted, Date: common.GetCurrentTimestamp()}
	if err := c.db.UpdateFile(ctx, file); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "file.delete", "file", file.ID, file.Path)
	return nil
}
