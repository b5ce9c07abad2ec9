package driver

import (
	"sort"
	"strings"
)

// sanitizeSegment normalises a package name for use as a map key and a
// directory name.
func sanitizeSegment(seg string) string {
	seg = strings.TrimSpace(seg)
	return strings.ReplaceAll(seg, "-", "_")
}

// SanitizeName exposes the package-name normalisation used by manifests and
// lockfiles.
func SanitizeName(name string) string { return sanitizeSegment(name) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
