package kb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armindomatias/housing-agent/internal/models"
)

func newTestKB() *KB {
	k := New(func(key string) (string, error) {
		return "line1\nline2\nline3", nil
	}, "user/profile", "portfolio/index")
	k.Index("user/profile", "empty profile", SourceStore)
	k.Index("portfolio/index", "no properties yet", SourceStore)
	return k
}

func TestRemoveProtectedKeyRejected(t *testing.T) {
	k := newTestKB()
	before := k.List()

	err := k.Remove("user/profile")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtectedKey))
	assert.Equal(t, before, k.List())
}

func TestOffloadClearsContentKeepsSummary(t *testing.T) {
	k := newTestKB()
	k.Index("user/budget", "budget summary", SourceStore)
	require.NoError(t, k.Load("user/budget", 0, 0))
	e, _ := k.Get("user/budget")
	require.True(t, e.Loaded())

	require.NoError(t, k.Offload("user/budget"))

	e, ok := k.Get("user/budget")
	require.True(t, ok)
	assert.False(t, e.Loaded())
	assert.Equal(t, 0, e.LinesLoaded)
	assert.Equal(t, "budget summary", e.Summary)
}

func TestDemoteStaleIsIdempotent(t *testing.T) {
	k := newTestKB()
	k.Index("user/budget", "budget summary", SourceStore)
	require.NoError(t, k.Load("user/budget", 0, 0))

	referenced := map[string]bool{}
	k.DemoteStale(referenced)
	first := k.List()
	k.DemoteStale(referenced)
	second := k.List()

	assert.Equal(t, first, second)
	e, _ := k.Get("user/budget")
	assert.False(t, e.Loaded())
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	k := newTestKB()
	content := "alpha\nbeta"
	k.Write("portfolio/1/analise", "detail", &content, SourceTool)
	require.NoError(t, k.Load("portfolio/1/analise", 0, 0))

	e, ok := k.Get("portfolio/1/analise")
	require.True(t, ok)
	require.NotNil(t, e.Content)
	assert.Equal(t, content, *e.Content)
	assert.Equal(t, 2, e.LinesLoaded)
	assert.Equal(t, 2, e.TotalLines)
}

func TestLoadUnknownKeyFails(t *testing.T) {
	k := newTestKB()
	err := k.Load("does/not/exist", 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestRenderOrderingAlwaysPresentFirst(t *testing.T) {
	k := newTestKB()
	k.Index("user/fiscal", "fiscal summary", SourceStore)
	k.Index("portfolio/9/resumo", "summary 9", SourceStore)

	text := Render(k, nil, nil)

	idxProfile := indexOf(text, "user/profile")
	idxPortfolioIndex := indexOf(text, "portfolio/index")
	idxFiscal := indexOf(text, "user/fiscal")
	require.True(t, idxProfile >= 0 && idxPortfolioIndex >= 0 && idxFiscal >= 0)
	assert.Less(t, idxProfile, idxFiscal)
	assert.Less(t, idxPortfolioIndex, idxFiscal)
}

func TestRenderOmitsEmptySections(t *testing.T) {
	k := newTestKB()
	text := Render(k, nil, nil)
	assert.NotContains(t, text, "### Tasks")
	assert.NotContains(t, text, "### Current Focus")
}

func TestRenderIncludesTasksAndFocus(t *testing.T) {
	k := newTestKB()
	todos := []models.Todo{{ID: "t1", Task: "call lender", Status: models.TodoPending}}
	focus := &models.Focus{PropertyID: "p1", Topic: "kitchen", Depth: 2}

	text := Render(k, todos, focus)

	assert.Contains(t, text, "### Tasks")
	assert.Contains(t, text, "[ ] (t1) call lender")
	assert.Contains(t, text, "### Current Focus")
	assert.Contains(t, text, "Property: p1 | Topic: kitchen | Depth: 2")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
