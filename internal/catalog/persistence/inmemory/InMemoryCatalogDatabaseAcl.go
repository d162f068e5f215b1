package persistence_inmemory

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// aclsOf reads the ACL entries of an entity. The caller holds the lock.
func (db *InMemoryCatalogDatabase) aclsOf(kind model.Kind, entityID int) ([]model.AclEntry, error) {
	switch kind {
	case model.KindStudy:
		if s, ok := db.studies[entityID]; ok {
			return s.Acls, nil
		}
	case model.KindFile:
		if f, ok := db.files[entityID]; ok {
			return f.Acls, nil
		}
	case model.KindSample:
		if s, ok := db.samples[entityID]; ok {
			return s.Acls, nil
		}
	case model.KindIndividual:
		if i, ok := db.individuals[entityID]; ok {
			return i.Acls, nil
		}
	case model.KindCohort:
		if c, ok := db.cohorts[entityID]; ok {
			return c.Acls, nil
		}
	case model.KindDataset:
		if d, ok := db.datasets[entityID]; ok {
			return d.Acls, nil
		}
	case model.KindPanel:
		if p, ok := db.panels[entityID]; ok {
			return p.Acls, nil
		}
	case model.KindJob:
		if j, ok := db.jobs[entityID]; ok {
			return j.Acls, nil
		}
	default:
		return nil, common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
	return nil, common.NewErrNotFound("%s %d not found", kind, entityID)
}

// setAclsOf writes back the ACL entries of an entity. The caller holds the
// lock.
func (db *InMemoryCatalogDatabase) setAclsOf(kind model.Kind, entityID int, acls []model.AclEntry) error {
	switch kind {
	case model.KindStudy:
		if s, ok := db.studies[entityID]; ok {
			s.Acls = acls
			db.studies[entityID] = s
			return nil
		}
	case model.KindFile:
		if f, ok := db.files[entityID]; ok {
			f.Acls = acls
			db.files[entityID] = f
			return nil
		}
	case model.KindSample:
		if s, ok := db.samples[entityID]; ok {
			s.Acls = acls
			db.samples[entityID] = s
			return nil
		}
	case model.KindIndividual:
		if i, ok := db.individuals[entityID]; ok {
			i.Acls = acls
			db.individuals[entityID] = i
			return nil
		}
	case model.KindCohort:
		if c, ok := db.cohorts[entityID]; ok {
			c.Acls = acls
			db.cohorts[entityID] = c
			return nil
		}
	case model.KindDataset:
		if d, ok := db.datasets[entityID]; ok {
			d.Acls = acls
			db.datasets[entityID] = d
			return nil
		}
	case model.KindPanel:
		if p, ok := db.panels[entityID]; ok {
			p.Acls = acls
			db.panels[entityID] = p
			return nil
		}
	case model.KindJob:
		if j, ok := db.jobs[entityID]; ok {
			j.Acls = acls
			db.jobs[entityID] = j
			return nil
		}
	default:
		return common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
	return common.NewErrNotFound("%s %d not found", kind, entityID)
}

func filterAclsByMember(acls []model.AclEntry, members []string) []model.AclEntry {
	wanted := make(map[string]bool, len(members))
	for _, m := range members {
		wanted[m] = true
	}
	out := []model.AclEntry{}
	for _, a := range acls {
		if len(members) > 0 && !wanted[a.Member] {
			continue
		}
		entry := model.AclEntry{Member: a.Member, Permissions: make([]model.Permission, len(a.Permissions))}
		copy(entry.Permissions, a.Permissions)
		out = append(out, entry)
	}
	return out
}

func (db *InMemoryCatalogDatabase) GetAcls(ctx context.Context, kind model.Kind, entityID int, members []string) ([]model.AclEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	acls, err := db.aclsOf(kind, entityID)
	if err != nil {
		return nil, err
	}
	return filterAclsByMember(acls, members), nil
}

func (db *InMemoryCatalogDatabase) GetFileAclsByPaths(ctx context.Context, studyID int, paths []string, members []string) (map[string][]model.AclEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}
	out := make(map[string][]model.AclEntry, len(paths))
	for _, f := range db.files {
		if f.StudyID == studyID && f.Status.Name != model.StatusDeleted && wanted[f.Path] {
			out[f.Path] = filterAclsByMember(f.Acls, members)
		}
	}
	return out, nil
}

func (db *InMemoryCatalogDatabase) CreateAcl(ctx context.Context, kind model.Kind, entityID int, entry model.AclEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	acls, err := db.aclsOf(kind, entityID)
	if err != nil {
		return err
	}
	for _, a := range acls {
		if a.Member == entry.Member {
			return common.NewErrPrecondition("member '%s' already has an ACL defined for %s %d", entry.Member, kind, entityID)
		}
	}
	return db.setAclsOf(kind, entityID, append(acls, entry))
}

func (db *InMemoryCatalogDatabase) SetAclsToMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	acls, err := db.aclsOf(kind, entityID)
	if err != nil {
		return err
	}
	perms := make([]model.Permission, len(permissions))
	copy(perms, permissions)
	for i, a := range acls {
		if a.Member == member {
			acls[i].Permissions = perms
			return db.setAclsOf(kind, entityID, acls)
		}
	}
	return db.setAclsOf(kind, entityID, append(acls, model.AclEntry{Member: member, Permissions: perms}))
}

func (db *InMemoryCatalogDatabase) AddAclsToMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) ([]model.Permission, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	acls, err := db.aclsOf(kind, entityID)
	if err != nil {
		return nil, err
	}
	for i, a := range acls {
		if a.Member != member {
			continue
		}
		have := make(map[model.Permission]bool, len(a.Permissions))
		for _, p := range a.Permissions {
			have[p] = true
		}
		for _, p := range permissions {
			if !have[p] {
				have[p] = true
				acls[i].Permissions = append(acls[i].Permissions, p)
			}
		}
		result := make([]model.Permission, len(acls[i].Permissions))
		copy(result, acls[i].Permissions)
		return result, db.setAclsOf(kind, entityID, acls)
	}
	perms := make([]model.Permission, len(permissions))
	copy(perms, permissions)
	result := make([]model.Permission, len(perms))
	copy(result, perms)
	return result, db.setAclsOf(kind, entityID, append(acls, model.AclEntry{Member: member, Permissions: perms}))
}

func (db *InMemoryCatalogDatabase) RemoveAclsFromMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) ([]model.Permission, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	acls, err := db.aclsOf(kind, entityID)
	if err != nil {
		return nil, err
	}
	drop := make(map[model.Permission]bool, len(permissions))
	for _, p := range permissions {
		drop[p] = true
	}
	for i, a := range acls {
		if a.Member != member {
			continue
		}
		kept := []model.Permission{}
		for _, p := range a.Permissions {
			if !drop[p] {
				kept = append(kept, p)
			}
		}
		acls[i].Permissions = kept
		result := make([]model.Permission, len(kept))
		copy(result, kept)
		return result, db.setAclsOf(kind, entityID, acls)
	}
	return nil, common.NewErrNotFound("member '%s' has no ACL defined for %s %d", member, kind, entityID)
}

func (db *InMemoryCatalogDatabase) RemoveAcl(ctx context.Context, kind model.Kind, entityID int, member string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	acls, err := db.aclsOf(kind, entityID)
	if err != nil {
		return err
	}
	for i, a := range acls {
		if a.Member == member {
			return db.setAclsOf(kind, entityID, append(acls[:i], acls[i+1:]...))
		}
	}
	return common.NewErrNotFound("member '%s' has no ACL defined for %s %d", member, kind, entityID)
}

func (db *InMemoryCatalogDatabase) GetDaemonAcl(ctx context.Context, studyID int, member string) (model.AclEntry, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	entry, ok := db.daemonAcls[studyID][member]
	if !ok {
		return model.AclEntry{}, false, nil
	}
	out := model.AclEntry{Member: entry.Member, Permissions: make([]model.Permission, len(entry.Permissions))}
	copy(out.Permissions, entry.Permissions)
	return out, true, nil
}

func (db *InMemoryCatalogDatabase) SetDaemonAcl(ctx context.Context, studyID int, entry model.AclEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.daemonAcls[studyID] == nil {
		db.daemonAcls[studyID] = make(map[string]model.AclEntry)
	}
	db.daemonAcls[studyID][entry.Member] = entry
	return nil
}

func (db *InMemoryCatalogDatabase) RemoveDaemonAcl(ctx context.Context, studyID int, member string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.daemonAcls[studyID][member]; !ok {
		return common.NewErrNotFound("member '%s' has no daemon ACL in study %d", member, studyID)
	}
	delete(db.daemonAcls[studyID], member)
	return nil
}

func (db *InMemoryCatalogDatabase) CheckID(ctx context.Context, kind model.Kind, entityID int) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var ok bool
	switch kind {
	case model.KindStudy:
		_, ok = db.studies[entityID]
	case model.KindFile:
		_, ok = db.files[entityID]
	case model.KindSample:
		_, ok = db.samples[entityID]
	case model.KindIndividual:
		_, ok = db.individuals[entityID]
	case model.KindCohort:
		_, ok = db.cohorts[entityID]
	case model.KindDataset:
		_, ok = db.datasets[entityID]
	case model.KindPanel:
		_, ok = db.panels[entityID]
	case model.KindJob:
		_, ok = db.jobs[entityID]
	default:
		return common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
	if !ok {
		return common.NewErrNotFound("%s %d not found", kind, entityID)
	}
	return nil
}
