// Package summaries generates the short human-readable strings projected
// into the knowledge base (spec.md §2 "Summary functions"). Every function
// here is a deterministic template; the one LLM-backed summary (the
// conversation-end narrative) lives in narrative.go.
package summaries

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armindomatias/housing-agent/internal/models"
)

// EmptyProfileSummary is the sentinel summary for a brand-new user, seen
// in spec.md §8's end-to-end scenario 1.
const EmptyProfileSummary = "no profile information yet"

// EmptyPortfolioSummary is the sentinel summary for a user with no saved
// properties (spec.md §8 boundary behavior).
const EmptyPortfolioSummary = "no properties saved yet"

// Profile renders the master summary from all five sections.
func Profile(p *models.Profile) string {
	if p == nil {
		return EmptyProfileSummary
	}
	var parts []string
	for _, pair := range []struct {
		label string
		m     map[string]any
	}{
		{"fiscal", p.Fiscal}, {"budget", p.Budget}, {"renovation", p.Renovation},
		{"preferences", p.Preferences}, {"goals", p.Goals},
	} {
		if len(pair.m) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", pair.label, renderMap(pair.m)))
	}
	if len(parts) == 0 {
		return EmptyProfileSummary
	}
	return strings.Join(parts, "; ")
}

// ProfileSection renders one section's summary from its current patch.
func ProfileSection(section models.ProfileSection, patch map[string]any) string {
	if len(patch) == 0 {
		return fmt.Sprintf("%s: no data", section)
	}
	return fmt.Sprintf("%s: %s", section, renderMap(patch))
}

func renderMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// PortfolioIndex renders the one-line-per-item digest backing the
// portfolio/index knowledge key (spec.md §3).
func PortfolioIndex(items []*models.PortfolioItem) string {
	active := make([]*models.PortfolioItem, 0, len(items))
	for _, it := range items {
		if it.Status == models.PortfolioActive {
			active = append(active, it)
		}
	}
	if len(active) == 0 {
		return EmptyPortfolioSummary
	}
	lines := make([]string, 0, len(active))
	for _, it := range active {
		marker := ""
		if it.IsActive {
			marker = " (active)"
		}
		name := it.Nickname
		if name == "" {
			name = it.PropertyID
		}
		lines = append(lines, fmt.Sprintf("%s%s", name, marker))
	}
	return strings.Join(lines, "\n")
}

// Analysis renders an analysis record's one-line resumo.
func Analysis(a *models.AnalysisRecord) string {
	if a == nil {
		return "no analysis yet"
	}
	return fmt.Sprintf("estimated cost $%.0f-$%.0f (confidence %.0f%%)", a.Totals.CostMin, a.Totals.CostMax, a.Totals.Confidence*100)
}

// AnalysisDetail renders the full per-room breakdown for the
// portfolio/{id}/analise content key.
func AnalysisDetail(a *models.AnalysisRecord, rooms []models.RoomFeature) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", Analysis(a))
	for _, r := range rooms {
		fmt.Fprintf(&b, "%s (%s): %s, $%.0f-$%.0f\n", r.RoomKey, r.RoomType, r.Condition, r.CostMin, r.CostMax)
	}
	return b.String()
}
