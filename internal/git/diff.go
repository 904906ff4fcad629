package git

import (
	"path"
	"strings"
)

// DefaultExcludedFiles are dropped from staged diffs before prompting.
var DefaultExcludedFiles = []string{"package-lock.json"}

// RemoveFileSections drops every "diff --git" section whose path (either
// side) has a base name in names.
func RemoveFileSections(diff string, names []string) string {
	if len(names) == 0 || diff == "" {
		return diff
	}
	excluded := make(map[string]bool, len(names))
	for _, n := range names {
		excluded[n] = true
	}

	var b strings.Builder
	keep := true
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			keep = !sectionExcluded(line, excluded)
		}
		if keep {
			b.WriteString(line)
		}
	}
	return b.String()
}

func sectionExcluded(header string, excluded map[string]bool) bool {
	fields := strings.Fields(strings.TrimPrefix(header, "diff --git "))
	for _, f := range fields {
		f = strings.Trim(f, `"`)
		f = strings.TrimPrefix(strings.TrimPrefix(f, "a/"), "b/")
		if excluded[path.Base(f)] {
			return true
		}
	}
	return false
}
