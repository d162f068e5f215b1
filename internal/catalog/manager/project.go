package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// CreateProject registers a project owned by the caller.
func (c *Catalog) CreateProject(ctx context.Context, caller string, project model.Project) (model.Project, error) {
	if project.Alias == "" {
		return model.Project{}, common.NewErrInvalidArgument("project alias is required")
	}
	if _, err := c.db.GetUser(ctx, caller); err != nil {
		return model.Project{}, err
	}
	if _, err := c.db.FindProjectByAlias(ctx, caller, project.Alias); err == nil {
		return model.Project{}, common.NewErrConflict("project alias '%s' already exists for user '%s'", project.Alias, caller)
	} else if !common.IsErrNotFound(err) {
		return model.Project{}, err
	}

	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Project{}, err
	}
	project.ID = id
	project.OwnerID = caller
	project.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateProject(ctx, project); err != nil {
		return model.Project{}, err
	}
	audit.Log(ctx, c.audit, caller, "project.create", "project", id, project.Alias)
	return project, nil
}

// GetProject is restricted to the owner. Non-owners reach studies through
// study-level ACLs, never through the project document.
func (c *Catalog) GetProject(ctx context.Context, caller string, projectID int) (model.Project, error) {
	project, err := c.db.GetProject(ctx, projectID)
	if err != nil {
		return model.Project{}, err
	}
	if project.OwnerID != caller {
		return model.Project{}, common.NewErrPermissionDenied("user '%s' cannot read project %d", caller, projectID)
	}
	return project, nil
}

func (c *Catalog) ListProjects(ctx context.Context, caller string) ([]model.Project, error) {
	return c.db.ListProjectsByOwner(ctx, caller)
}

// UpdateProject applies name, description and alias changes. Alias renames
// are gated on ownership since they change every scoped identifier below.
func (c *Catalog) UpdateProject(ctx context.Context, caller string, project model.Project) (model.Project, error) {
	current, err := c.db.GetProject(ctx, project.ID)
	if err != nil {
		return model.Project{}, err
	}
	if current.OwnerID != caller {
		return model.Project{}, common.NewErrPermissionDenied("user '%s' cannot update project %d", caller, project.ID)
	}
	if project.Name != "" {
		current.Name = project.Name
	}
	if project.Description != "" {
		current.Description = project.Description
	}
	if project.Alias != "" && project.Alias != current.Alias {
		if _, err := c.db.FindProjectByAlias(ctx, caller, project.Alias); err == nil {
			return model.Project{}, common.NewErrConflict("project alias '%s' already exists for user '%s'", project.Alias, caller)
		} else if !common.IsErrNotFound(err) {
			return model.Project{}, err
		}
		current.Alias = project.Alias
	}
	if err := c.db.UpdateProject(ctx, current); err != nil {
		return model.Project{}, err
	}
	audit.Log(ctx, c.audit, caller, "project.update", "project", current.ID, current.Alias)
	return current, nil
}
