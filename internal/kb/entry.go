// Package kb implements the knowledge base: a virtual file system with
// two-tier presence (summary-always, content-on-demand) that backs the
// orchestrator's working memory (spec.md §4.1).
package kb

import "strings"

// Source tags where an entry's content originates from, for diagnostics and
// for deciding how a future load should refetch it.
type Source string

const (
	SourceStore    Source = "store"
	SourceTool     Source = "tool"
	SourcePipeline Source = "pipeline"
)

// Entry is one knowledge-base record. Content is nil when the key is
// "available" but not loaded; invariant (iii) in spec.md §3 requires
// Content == nil iff LinesLoaded == 0.
type Entry struct {
	Summary     string
	Content     *string
	LinesLoaded int
	TotalLines  int
	Source      Source
}

// Loaded reports whether the entry's content is currently in memory.
func (e Entry) Loaded() bool {
	return e.Content != nil
}

// alwaysPresentOrder is the fixed declared order from spec.md §3. The
// render function's ordering contract depends on this slice, not on map
// iteration, which Go deliberately randomizes.
var alwaysPresentOrder = []string{
	"user/profile",
	"portfolio/index",
}

// isStaticAlwaysPresent reports whether key is one of the fixed-name
// always-present keys: user/profile, portfolio/index, or
// session/resumo_anterior. The per-item portfolio/{active}/resumo key is
// not matched here.
func isStaticAlwaysPresent(key string) bool {
	for _, k := range alwaysPresentOrder {
		if k == key {
			return true
		}
	}
	return key == "session/resumo_anterior"
}

// isActiveResumoKey reports whether key looks like portfolio/{id}/resumo.
func isActiveResumoKey(key string) bool {
	if !strings.HasPrefix(key, "portfolio/") {
		return false
	}
	return strings.HasSuffix(key, "/resumo")
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
