package authorization

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/model"
)

// AuthContext is the request-scoped ACL cache for one study. It maps each
// ancestor path to the entries seen per member; a nil entry records a
// confirmed absence so the same path is never fetched twice within the
// request. Contexts are plain values owned by one request, never shared.
type AuthContext struct {
	StudyID  int
	pathAcls map[string]map[string]*model.AclEntry
}

// NewAuthContext creates an empty cache for a study.
func NewAuthContext(studyID int) *AuthContext {
	return &AuthContext{StudyID: studyID, pathAcls: make(map[string]map[string]*model.AclEntry)}
}

// missingPaths returns the paths not yet populated for every member. A path
// counts as populated only when each member has either an entry or an
// absence marker.
func (c *AuthContext) missingPaths(paths, members []string) []string {
	var missing []string
	for _, path := range paths {
		cached := c.pathAcls[path]
		complete := cached != nil
		for _, member := range members {
			if _, ok := cached[member]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			missing = append(missing, path)
		}
	}
	return missing
}

// merge stores the bulk lookup result, marking absences for every fetched
// (path, member) pair without an entry.
func (c *AuthContext) merge(paths, members []string, fetched map[string][]model.AclEntry) {
	for _, path := range paths {
		cached := c.pathAcls[path]
		if cached == nil {
			cached = make(map[string]*model.AclEntry, len(members))
			c.pathAcls[path] = cached
		}
		for _, member := range members {
			cached[member] = nil
		}
		for _, entry := range fetched[path] {
			e := entry
			cached[e.Member] = &e
		}
	}
}

// entryAt returns the cached entry deciding at a path following the member
// precedence, or false when every member is absent there.
func (c *AuthContext) entryAt(path string, members []string) (model.AclEntry, bool) {
	cached := c.pathAcls[path]
	for _, member := range members {
		if entry := cached[member]; entry != nil {
			return *entry, true
		}
	}
	return model.AclEntry{}, false
}

// resolveFileEntryCached walks the ancestor chain of a file through the
// request cache. Paths already populated are skipped; the rest go into one
// bulk adaptor lookup, so a listing of N files costs at most one round-trip
// per distinct ancestor path set.
func (m *Manager) resolveFileEntryCached(ctx context.Context, actx *AuthContext, path string, members []string) (model.AclEntry, bool, error) {
	paths := model.ParentPaths(path)
	missing := actx.missingPaths(paths, members)
	if len(missing) > 0 {
		fetched, err := m.db.GetFileAclsByPaths(ctx, actx.StudyID, missing, members)
		if err != nil {
			return model.AclEntry{}, false, err
		}
		actx.merge(missing, members, fetched)
	}
	for i := len(paths) - 1; i >= 0; i-- {
		if entry, ok := actx.entryAt(paths[i], members); ok {
			return entry, true, nil
		}
	}
	return model.AclEntry{}, false, nil
}

// resolveFileEntry is the single-shot form used by one-off checks.
func (m *Manager) resolveFileEntry(ctx context.Context, studyID int, path string, members []string) (model.AclEntry, bool, error) {
	return m.resolveFileEntryCached(ctx, NewAuthContext(studyID), path, members)
}
