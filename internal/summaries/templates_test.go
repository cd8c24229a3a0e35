package summaries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/armindomatias/housing-agent/internal/models"
)

func TestProfileEmpty(t *testing.T) {
	assert.Equal(t, EmptyProfileSummary, Profile(nil))
	assert.Equal(t, EmptyProfileSummary, Profile(&models.Profile{}))
}

func TestProfileRendersSections(t *testing.T) {
	p := &models.Profile{
		Fiscal: map[string]any{"income": 90000},
		Budget: map[string]any{"max": 400000},
	}
	got := Profile(p)
	assert.Contains(t, got, "fiscal: income=90000")
	assert.Contains(t, got, "budget: max=400000")
}

func TestPortfolioIndexEmptyState(t *testing.T) {
	assert.Equal(t, EmptyPortfolioSummary, PortfolioIndex(nil))
	assert.Equal(t, EmptyPortfolioSummary, PortfolioIndex([]*models.PortfolioItem{
		{Status: models.PortfolioArchived},
	}))
}

func TestPortfolioIndexMarksActive(t *testing.T) {
	items := []*models.PortfolioItem{
		{Nickname: "Maple House", Status: models.PortfolioActive, IsActive: true},
		{Nickname: "Oak House", Status: models.PortfolioActive},
	}
	got := PortfolioIndex(items)
	assert.Contains(t, got, "Maple House (active)")
	assert.Contains(t, got, "Oak House")
	assert.NotContains(t, got, "Oak House (active)")
}

func TestAnalysisNil(t *testing.T) {
	assert.Equal(t, "no analysis yet", Analysis(nil))
}

func TestConversationEndNarrativeFallsBackWithoutProvider(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "thanks"},
	}
	got := ConversationEndNarrative(context.Background(), nil, "claude-sonnet-4-20250514", messages)
	assert.Contains(t, got, "2 exchange(s)")
}
