package model

import "strings"

// ParentPaths returns every ancestor of a study-relative path ordered from
// the study root down to the path itself. The root is the empty string and
// folder segments keep their trailing slash, matching how folder documents
// are stored.
func ParentPaths(path string) []string {
	paths := []string{""}
	if path == "" {
		return paths
	}
	trimmed := strings.TrimSuffix(path, "/")
	parts := strings.Split(trimmed, "/")
	prefix := ""
	for i := 0; i < len(parts)-1; i++ {
		prefix += parts[i] + "/"
		paths = append(paths, prefix)
	}
	return append(paths, path)
}
