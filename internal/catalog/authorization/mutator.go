package authorization

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// AclUpdate describes one updateAcl call. Set is exclusive with Add/Remove.
type AclUpdate struct {
	Set    []string
	Add    []string
	Remove []string
}

// sharePermission returns the right required to manage ACLs on a kind.
func sharePermission(kind model.Kind) model.Permission {
	if kind == model.KindStudy {
		return model.ShareStudy
	}
	return model.Share
}

// validateMembers checks that every member reference is usable: "@group"
// must name an existing group in the study, plain names must be registered
// users. "*" and "anonymous" are always valid.
func (m *Manager) validateMembers(ctx context.Context, studyID int, members []string) error {
	for _, member := range members {
		switch {
		case member == model.AllUsers || member == model.AnonymousUser:
		case model.IsGroupMember(member):
			groups, err := m.db.GetGroups(ctx, studyID)
			if err != nil {
				return err
			}
			found := false
			for _, g := range groups {
				if "@"+g.ID == member {
					found = true
					break
				}
			}
			if !found {
				return common.NewErrNotFound("group '%s' does not exist in study %d", member, studyID)
			}
		case member == model.AdminUser:
			return common.NewErrInvalidArgument("member 'admin' is reserved for the daemon ACL table")
		default:
			if _, err := m.db.GetUser(ctx, member); err != nil {
				return err
			}
		}
	}
	return nil
}

// memberHasStudyAcl enforces Invariant B: before a member receives an ACL on
// a child entity it must already hold some ACL on the enclosing study,
// either directly or through its group. "*" and "anonymous" are exempt.
func (m *Manager) memberHasStudyAcl(ctx context.Context, studyID int, member string) (bool, error) {
	if member == model.AllUsers || member == model.AnonymousUser {
		return true, nil
	}
	candidates := []string{member}
	if !model.IsGroupMember(member) {
		groups, err := m.db.GetGroupsForUser(ctx, studyID, member)
		if err != nil {
			return false, err
		}
		for _, g := range groups {
			candidates = append(candidates, "@"+g.ID)
		}
	}
	acls, err := m.db.GetAcls(ctx, model.KindStudy, studyID, candidates)
	if err != nil {
		return false, err
	}
	return len(acls) > 0, nil
}

// CreateStudyAcls registers members on a study, optionally expanding a
// template ("admin", "analyst", "locked") under the explicit permissions.
// The caller needs SHARE_STUDY; each member must not already hold an entry.
func (m *Manager) CreateStudyAcls(ctx context.Context, caller string, studyID int, members []string, permissions []string, template string) ([]model.AclEntry, error) {
	if err := m.CheckStudyPermission(ctx, studyID, caller, model.ShareStudy); err != nil {
		return nil, err
	}
	perms, err := model.TemplatePermissions(template)
	if err != nil {
		return nil, err
	}
	explicit, err := model.ParsePermissions(model.KindStudy, permissions)
	if err != nil {
		return nil, err
	}
	perms = unionPermissions(perms, explicit)

	var created []model.AclEntry
	err = m.withStudyLock(ctx, studyID, func() error {
		if err := m.validateMembers(ctx, studyID, members); err != nil {
			return err
		}
		for _, member := range members {
			existing, err := m.db.GetAcls(ctx, model.KindStudy, studyID, []string{member})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return common.NewErrPrecondition("member '%s' already has an ACL defined for study %d", member, studyID)
			}
		}
		for _, member := range members {
			entry := model.AclEntry{Member: member, Permissions: perms}
			if err := m.db.CreateAcl(ctx, model.KindStudy, studyID, entry); err != nil {
				return err
			}
			created = append(created, entry)
			audit.Log(ctx, m.audit, caller, "acl.create", string(model.KindStudy), studyID,
				fmt.Sprintf("member=%s permissions=%s", member, joinPermissions(perms)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateAcls grants members a permission set on a child entity. The caller
// needs SHARE on the entity; Invariant B applies to each member.
func (m *Manager) CreateAcls(ctx context.Context, caller string, ref EntityRef, members []string, permissions []string) ([]model.AclEntry, error) {
	if ref.Kind == model.KindStudy {
		return m.CreateStudyAcls(ctx, caller, ref.StudyID, members, permissions, "")
	}
	if err := m.CheckPermission(ctx, ref, caller, model.Share); err != nil {
		return nil, err
	}
	perms, err := model.ParsePermissions(ref.Kind, permissions)
	if err != nil {
		return nil, err
	}

	var created []model.AclEntry
	err = m.withStudyLock(ctx, ref.StudyID, func() error {
		if err := m.validateMembers(ctx, ref.StudyID, members); err != nil {
			return err
		}
		for _, member := range members {
			ok, err := m.memberHasStudyAcl(ctx, ref.StudyID, member)
			if err != nil {
				return err
			}
			if !ok {
				return common.NewErrPrecondition("member '%s' has no permissions defined in study %d yet", member, ref.StudyID)
			}
			existing, err := m.db.GetAcls(ctx, ref.Kind, ref.ID, []string{member})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return common.NewErrPrecondition("member '%s' already has an ACL defined for %s %d", member, ref.Kind, ref.ID)
			}
		}
		for _, member := range members {
			entry := model.AclEntry{Member: member, Permissions: perms}
			if err := m.db.CreateAcl(ctx, ref.Kind, ref.ID, entry); err != nil {
				return err
			}
			created = append(created, entry)
			audit.Log(ctx, m.audit, caller, "acl.create", string(ref.Kind), ref.ID,
				fmt.Sprintf("member=%s permissions=%s", member, joinPermissions(perms)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetAllAcls lists every entry on an entity. The caller needs SHARE.
func (m *Manager) GetAllAcls(ctx context.Context, caller string, ref EntityRef) ([]model.AclEntry, error) {
	if err := m.CheckPermission(ctx, ref, caller, sharePermission(ref.Kind)); err != nil {
		return nil, err
	}
	return m.db.GetAcls(ctx, ref.Kind, ref.ID, nil)
}

// GetMemberAcl returns one member's entry. Allowed with SHARE, or when the
// caller asks about themselves or a group they belong to.
func (m *Manager) GetMemberAcl(ctx context.Context, caller string, ref EntityRef, member string) (model.AclEntry, error) {
	askingAboutSelf := member == caller
	if !askingAboutSelf && model.IsGroupMember(member) && caller != model.AnonymousUser {
		groups, err := m.db.GetGroupsForUser(ctx, ref.StudyID, caller)
		if err != nil {
			return model.AclEntry{}, err
		}
		for _, g := range groups {
			if "@"+g.ID == member {
				askingAboutSelf = true
				break
			}
		}
	}
	if !askingAboutSelf {
		if err := m.CheckPermission(ctx, ref, caller, sharePermission(ref.Kind)); err != nil {
			return model.AclEntry{}, err
		}
	}
	acls, err := m.db.GetAcls(ctx, ref.Kind, ref.ID, []string{member})
	if err != nil {
		return model.AclEntry{}, err
	}
	if len(acls) == 0 {
		return model.AclEntry{}, common.NewErrNotFound("member '%s' has no ACL defined for %s %d", member, ref.Kind, ref.ID)
	}
	return acls[0], nil
}

// UpdateAcl amends or replaces a member's permission set. The member must
// already hold an entry; Set is exclusive with Add/Remove.
func (m *Manager) UpdateAcl(ctx context.Context, caller string, ref EntityRef, member string, update AclUpdate) (model.AclEntry, error) {
	if len(update.Set) > 0 && (len(update.Add) > 0 || len(update.Remove) > 0) {
		return model.AclEntry{}, common.NewErrInvalidArgument("set is exclusive with add and remove")
	}
	if len(update.Set) == 0 && len(update.Add) == 0 && len(update.Remove) == 0 {
		return model.AclEntry{}, common.NewErrInvalidArgument("no permission changes requested")
	}
	if err := m.CheckPermission(ctx, ref, caller, sharePermission(ref.Kind)); err != nil {
		return model.AclEntry{}, err
	}

	var result model.AclEntry
	err := m.withStudyLock(ctx, ref.StudyID, func() error {
		existing, err := m.db.GetAcls(ctx, ref.Kind, ref.ID, []string{member})
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return common.NewErrPrecondition("member '%s' has no ACL defined for %s %d yet", member, ref.Kind, ref.ID)
		}
		switch {
		case len(update.Set) > 0:
			perms, err := model.ParsePermissions(ref.Kind, update.Set)
			if err != nil {
				return err
			}
			if err := m.db.SetAclsToMember(ctx, ref.Kind, ref.ID, member, perms); err != nil {
				return err
			}
			result = model.AclEntry{Member: member, Permissions: perms}
			audit.Log(ctx, m.audit, caller, "acl.set", string(ref.Kind), ref.ID,
				fmt.Sprintf("member=%s permissions=%s", member, joinPermissions(perms)))
		default:
			current := existing[0].Permissions
			if len(update.Add) > 0 {
				perms, err := model.ParsePermissions(ref.Kind, update.Add)
				if err != nil {
					return err
				}
				current, err = m.db.AddAclsToMember(ctx, ref.Kind, ref.ID, member, perms)
				if err != nil {
					return err
				}
				audit.Log(ctx, m.audit, caller, "acl.add", string(ref.Kind), ref.ID,
					fmt.Sprintf("member=%s permissions=%s", member, joinPermissions(perms)))
			}
			if len(update.Remove) > 0 {
				perms, err := model.ParsePermissions(ref.Kind, update.Remove)
				if err != nil {
					return err
				}
				current, err = m.db.RemoveAclsFromMember(ctx, ref.Kind, ref.ID, member, perms)
				if err != nil {
					return err
				}
				audit.Log(ctx, m.audit, caller, "acl.remove", string(ref.Kind), ref.ID,
					fmt.Sprintf("member=%s permissions=%s", member, joinPermissions(perms)))
			}
			result = model.AclEntry{Member: member, Permissions: current}
		}
		return nil
	})
	if err != nil {
		return model.AclEntry{}, err
	}
	return result, nil
}

// RemoveAcl drops a member's entry. Removing the study owner's entry is
// forbidden; a second identical call fails NotFound and changes nothing.
func (m *Manager) RemoveAcl(ctx context.Context, caller string, ref EntityRef, member string) error {
	if err := m.CheckPermission(ctx, ref, caller, sharePermission(ref.Kind)); err != nil {
		return err
	}
	owner, err := m.db.GetStudyOwner(ctx, ref.StudyID)
	if err != nil {
		return err
	}
	if member == owner {
		return common.NewErrPrecondition("cannot remove the ACL of study owner '%s'", owner)
	}
	return m.withStudyLock(ctx, ref.StudyID, func() error {
		if err := m.db.RemoveAcl(ctx, ref.Kind, ref.ID, member); err != nil {
			return err
		}
		audit.Log(ctx, m.audit, caller, "acl.delete", string(ref.Kind), ref.ID, "member="+member)
		return nil
	})
}

// ResetAcl removes whatever entry exists for the member. Unlike RemoveAcl
// it does not require an entry to exist.
func (m *Manager) ResetAcl(ctx context.Context, caller string, ref EntityRef, member string) error {
	if err := m.CheckPermission(ctx, ref, caller, sharePermission(ref.Kind)); err != nil {
		return err
	}
	return m.withStudyLock(ctx, ref.StudyID, func() error {
		err := m.db.RemoveAcl(ctx, ref.Kind, ref.ID, member)
		if common.IsErrNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		audit.Log(ctx, m.audit, caller, "acl.reset", string(ref.Kind), ref.ID, "member="+member)
		return nil
	})
}

// SetDaemonAcl registers the admin daemon's rights for a study. Only the
// study owner may change the daemon table.
func (m *Manager) SetDaemonAcl(ctx context.Context, caller string, studyID int, permissions []string) error {
	owner, err := m.db.GetStudyOwner(ctx, studyID)
	if err != nil {
		return err
	}
	if caller != owner {
		return common.NewErrPermissionDenied("only the study owner may change the daemon ACL of study %d", studyID)
	}
	perms, err := model.ParsePermissions(model.KindStudy, permissions)
	if err != nil {
		return err
	}
	return m.withStudyLock(ctx, studyID, func() error {
		entry := model.AclEntry{Member: model.AdminUser, Permissions: perms}
		if err := m.db.SetDaemonAcl(ctx, studyID, entry); err != nil {
			return err
		}
		audit.Log(ctx, m.audit, caller, "acl.daemon", string(model.KindStudy), studyID,
			"permissions="+joinPermissions(perms))
		return nil
	})
}

func unionPermissions(base, extra []model.Permission) []model.Permission {
	have := make(map[model.Permission]bool, len(base))
	out := make([]model.Permission, 0, len(base)+len(extra))
	for _, p := range base {
		if !have[p] {
			have[p] = true
			out = append(out, p)
		}
	}
	for _, p := range extra {
		if !have[p] {
			have[p] = true
			out = append(out, p)
		}
	}
	return out
}

func joinPermissions(perms []model.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}
