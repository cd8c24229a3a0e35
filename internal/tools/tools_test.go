package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armindomatias/housing-agent/internal/kb"
	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/pipeline"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/turn"
)

func newTestState(userID string) *turn.State {
	st := turn.NewState(userID, "conv-1")
	st.Knowledge = kb.New(nil, "user/profile", "portfolio/index")
	st.Knowledge.Index("user/profile", "no profile information yet", kb.SourceStore)
	st.Knowledge.Index("portfolio/index", "no properties saved yet", kb.SourceStore)
	return st
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewBuiltinRegistry()
	svc := &Services{Store: store.NewMemoryStore()}
	st := newTestState("u1")

	cmd := r.Execute(context.Background(), svc, st, "does_not_exist", nil)
	assert.True(t, cmd.IsError)
	assert.Equal(t, CategoryUserInput, cmd.ErrorCategory)
}

func TestRegistrySchemaValidation(t *testing.T) {
	r := NewBuiltinRegistry()
	svc := &Services{Store: store.NewMemoryStore()}
	st := newTestState("u1")

	cmd := r.Execute(context.Background(), svc, st, "manage_todos", json.RawMessage(`{"action": "bogus_action"}`))
	assert.True(t, cmd.IsError)
	assert.Equal(t, CategoryUserInput, cmd.ErrorCategory)
}

func TestManageTodosCompleteUnknownID(t *testing.T) {
	st := newTestState("u1")
	svc := &Services{}

	before := append([]models.Todo(nil), st.Todos...)
	cmd := ManageTodos(context.Background(), svc, st, json.RawMessage(`{"action": "complete", "id": "nope"}`))
	assert.True(t, cmd.IsError)
	assert.Equal(t, before, st.Todos)
}

func TestManageTodosAddThenComplete(t *testing.T) {
	st := newTestState("u1")
	svc := &Services{}

	cmd := ManageTodos(context.Background(), svc, st, json.RawMessage(`{"action": "add", "task": "call the bank"}`))
	require.False(t, cmd.IsError)
	require.Len(t, st.Todos, 1)
	id := st.Todos[0].ID

	cmd = ManageTodos(context.Background(), svc, st, json.RawMessage(`{"action": "complete", "id": "`+id+`"}`))
	require.False(t, cmd.IsError)
	assert.Equal(t, models.TodoDone, st.Todos[0].Status)
}

func TestReadContextUnknownKey(t *testing.T) {
	st := newTestState("u1")
	svc := &Services{}

	cmd := ReadContext(context.Background(), svc, st, json.RawMessage(`{"key": "portfolio/missing/resumo"}`))
	assert.True(t, cmd.IsError)
	assert.Equal(t, CategoryUnknownKey, cmd.ErrorCategory)
}

func TestRemoveContextProtectedKey(t *testing.T) {
	st := newTestState("u1")
	svc := &Services{}

	cmd := RemoveContext(context.Background(), svc, st, json.RawMessage(`{"key": "user/profile"}`))
	assert.True(t, cmd.IsError)
	assert.Equal(t, CategoryProtected, cmd.ErrorCategory)
}

type failingPipeline struct{}

func (failingPipeline) Run(_ context.Context, _ pipeline.Request) (*pipeline.Result, error) {
	return nil, fmt.Errorf("analysis pipeline: %w", pipeline.ErrStageFailed)
}

type okPipeline struct{}

func (okPipeline) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return &pipeline.Result{
		Property: models.Property{Address: "1 Test Way", ExternalURL: req.PropertyURL},
		Rooms:    []models.RoomFeature{{RoomKey: "kitchen_1", RoomType: "kitchen", CostMin: 1000, CostMax: 2000, Confidence: 0.8}},
		Totals:   models.AnalysisTotals{CostMin: 1000, CostMax: 2000, Confidence: 0.8},
		Narrative: "looks fine",
	}
}

func TestTriggerPropertyAnalysisRollsBackOnPipelineError(t *testing.T) {
	st := newTestState("u1")
	s := store.NewMemoryStore()
	svc := &Services{Store: s, Pipeline: failingPipeline{}}

	cmd := TriggerPropertyAnalysis(context.Background(), svc, st, json.RawMessage(`{"property_url": "https://example.test/p/1"}`))
	require.True(t, cmd.IsError)
	assert.Equal(t, CategoryPipeline, cmd.ErrorCategory)

	_, err := s.GetPropertyByExternalID(context.Background(), "https://example.test/p/1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	items, err := s.ListPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

// failOnWriteStore wraps a Store and fails one named method, to exercise
// TriggerPropertyAnalysis's rollback when a write partway through its
// sequence fails after earlier writes in the same call already succeeded.
type failOnWriteStore struct {
	store.Store
	failOn string
}

func (f *failOnWriteStore) WithTx(ctx context.Context, fn func(ctx context.Context, s store.Store) error) error {
	return f.Store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &failOnWriteStore{Store: tx, failOn: f.failOn})
	})
}

func (f *failOnWriteStore) SaveRoomFeatures(ctx context.Context, analysisID string, features []models.RoomFeature) error {
	if f.failOn == "SaveRoomFeatures" {
		return fmt.Errorf("simulated room feature write failure")
	}
	return f.Store.SaveRoomFeatures(ctx, analysisID, features)
}

func TestTriggerPropertyAnalysisRollsBackOnMidSequenceWriteError(t *testing.T) {
	st := newTestState("u1")
	s := store.NewMemoryStore()
	svc := &Services{Store: &failOnWriteStore{Store: s, failOn: "SaveRoomFeatures"}, Pipeline: okPipeline{}}

	cmd := TriggerPropertyAnalysis(context.Background(), svc, st, json.RawMessage(`{"property_url": "https://example.test/p/3"}`))
	require.True(t, cmd.IsError)
	assert.Equal(t, CategoryTransient, cmd.ErrorCategory)

	_, err := s.GetPropertyByExternalID(context.Background(), "https://example.test/p/3")
	assert.ErrorIs(t, err, store.ErrNotFound)

	items, err := s.ListPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTriggerPropertyAnalysisPersistsOnSuccess(t *testing.T) {
	st := newTestState("u1")
	s := store.NewMemoryStore()
	svc := &Services{Store: s, Pipeline: okPipeline{}}

	cmd := TriggerPropertyAnalysis(context.Background(), svc, st, json.RawMessage(`{"property_url": "https://example.test/p/2"}`))
	require.False(t, cmd.IsError)

	prop, err := s.GetPropertyByExternalID(context.Background(), "https://example.test/p/2")
	require.NoError(t, err)

	items, err := s.ListPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, prop.ID, items[0].PropertyID)
	assert.True(t, items[0].IsActive)

	require.NotNil(t, st.CurrentFocus)
	assert.Equal(t, prop.ID, st.CurrentFocus.PropertyID)
}
