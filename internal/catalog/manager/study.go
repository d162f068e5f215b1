package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// MembersGroup is created on every study; it is the default target for
// membership grants.
const MembersGroup = "members"

// CreateStudy registers a study under the caller's project with its default
// group and workspace tree.
func (c *Catalog) CreateStudy(ctx context.Context, caller string, projectID int, study model.Study) (model.Study, error) {
	if study.Alias == "" {
		return model.Study{}, common.NewErrInvalidArgument("study alias is required")
	}
	project, err := c.db.GetProject(ctx, projectID)
	if err != nil {
		return model.Study{}, err
	}
	if project.OwnerID != caller {
		return model.Study{}, common.NewErrPermissionDenied("user '%s' cannot create studies in project %d", caller, projectID)
	}
	if _, err := c.db.FindStudyByAlias(ctx, projectID, study.Alias); err == nil {
		return model.Study{}, common.NewErrConflict("study alias '%s' already exists in project %d", study.Alias, projectID)
	} else if !common.IsErrNotFound(err) {
		return model.Study{}, err
	}

	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Study{}, err
	}
	study.ID = id
	study.ProjectID = projectID
	study.Groups = []model.Group{{ID: MembersGroup}}
	study.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateStudy(ctx, study); err != nil {
		return model.Study{}, err
	}
	if err := c.io.CreateStudy(ctx, caller, projectID, id); err != nil {
		return model.Study{}, err
	}
	audit.Log(ctx, c.audit, caller, "study.create", "study", id, study.Alias)
	return study, nil
}

func (c *Catalog) GetStudy(ctx context.Context, caller string, studyID int) (model.Study, error) {
	visible, err := c.auth.CanViewStudy(ctx, studyID, caller)
	if err != nil {
		return model.Study{}, err
	}
	if !visible {
		return model.Study{}, common.NewErrPermissionDenied("user '%s' cannot view study %d", caller, studyID)
	}
	return c.db.GetStudy(ctx, studyID)
}

// ListStudies returns the studies the caller can view.
func (c *Catalog) ListStudies(ctx context.Context, caller string) ([]model.Study, error) {
	studies, err := c.db.ListStudies(ctx)
	if err != nil {
		return nil, err
	}
	visible := studies[:0]
	for _, study := range studies {
		ok, err := c.auth.CanViewStudy(ctx, study.ID, caller)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, study)
		}
	}
	return visible, nil
}

// UpdateStudy applies name and description changes.
func (c *Catalog) UpdateStudy(ctx context.Context, caller string, study model.Study) (model.Study, error) {
	if err := c.auth.CheckStudyPermission(ctx, study.ID, caller, model.UpdateStudy); err != nil {
		return model.Study{}, err
	}
	current, err := c.db.GetStudy(ctx, study.ID)
	if err != nil {
		return model.Study{}, err
	}
	if study.Name != "" {
		current.Name = study.Name
	}
	if study.Description != "" {
		current.Description = study.Description
	}
	if err := c.db.UpdateStudy(ctx, current); err != nil {
		return model.Study{}, err
	}
	audit.Log(ctx, c.audit, caller, "study.update", "study", current.ID, current.Alias)
	return current, nil
}

// GetGroups lists the study's groups.
func (c *Catalog) GetGroups(ctx context.Context, caller string, studyID int) ([]model.Group, error) {
	visible, err := c.auth.CanViewStudy(ctx, studyID, caller)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, common.NewErrPermissionDenied("user '%s' cannot view study %d", caller, studyID)
	}
	return c.db.GetGroups(ctx, studyID)
}

// CreateGroup adds an empty group to the study.
func (c *Catalog) CreateGroup(ctx context.Context, caller string, studyID int, groupID string) error {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.ShareStudy); err != nil {
		return err
	}
	if groupID == "" {
		return common.NewErrInvalidArgument("group id is required")
	}
	if err := c.db.CreateGroup(ctx, studyID, model.Group{ID: groupID}); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "group.create", "study", studyID, groupID)
	return nil
}

// AddGroupMember enrolls a user into a study group. A user belongs to at
// most one group per study, so membership anywhere else is a conflict.
func (c *Catalog) AddGroupMember(ctx context.Context, caller string, studyID int, groupID, userID string) error {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.ShareStudy); err != nil {
		return err
	}
	if _, err := c.db.GetUser(ctx, userID); err != nil {
		return err
	}
	existing, err := c.db.GetGroupsForUser(ctx, studyID, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return common.NewErrConflict("user '%s' already belongs to group '%s' in study %d", userID, existing[0].ID, studyID)
	}
	if err := c.db.AddGroupMember(ctx, studyID, groupID, userID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "group.member.add", "study", studyID, groupID+":"+userID)
	return nil
}

func (c *Catalog) RemoveGroupMember(ctx context.Context, caller string, studyID int, groupID, userID string) error {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.ShareStudy); err != nil {
		return err
	}
	if err := c.db.RemoveGroupMember(ctx, studyID, groupID, userID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "group.member.remove", "study", studyID, groupID+":"+userID)
	return nil
}
