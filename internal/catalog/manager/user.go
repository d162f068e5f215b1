package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// CreateUser registers an account and provisions its workspace directory.
func (c *Catalog) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		return model.User{}, common.NewErrInvalidArgument("user id is required")
	}
	switch user.ID {
	case model.AnonymousUser, model.AdminUser, model.AllUsers:
		return model.User{}, common.NewErrInvalidArgument("'%s' is a reserved principal", user.ID)
	}
	user.Status = model.Status{Name: model.StatusReady, Date: common.GetCurrentTimestamp()}
	if err := c.db.CreateUser(ctx, user); err != nil {
		return model.User{}, err
	}
	if err := c.io.CreateUser(ctx, user.ID); err != nil {
		return model.User{}, err
	}
	audit.Log(ctx, c.audit, user.ID, "user.create", "user", 0, user.ID)
	return user, nil
}

func (c *Catalog) GetUser(ctx context.Context, caller, userID string) (model.User, error) {
	if caller != userID {
		return model.User{}, common.NewErrPermissionDenied("user '%s' cannot read account '%s'", caller, userID)
	}
	return c.db.GetUser(ctx, userID)
}

// DeleteUser removes the account document. The workspace directory is kept
// so owned studies stay readable until they are migrated.
func (c *Catalog) DeleteUser(ctx context.Context, caller, userID string) error {
	if caller != userID {
		return common.NewErrPermissionDenied("user '%s' cannot delete account '%s'", caller, userID)
	}
	if err := c.db.DeleteUser(ctx, userID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "user.delete", "user", 0, userID)
	return nil
}
