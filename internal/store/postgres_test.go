package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armindomatias/housing-agent/internal/models"
)

func newMockStore(t *testing.T) (*postgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := newPostgresStoreFromDB(db).(*postgresStore)
	return s, mock
}

func TestGetProfileFound(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"user_id", "fiscal", "budget", "renovation", "preferences", "goals", "updated_at"}).
		AddRow("u1", []byte(`{"income":1}`), []byte(`{}`), []byte(`{}`), []byte(`{}`), []byte(`{}`), now)
	mock.ExpectQuery("SELECT user_id, fiscal, budget, renovation, preferences, goals, updated_at").
		WithArgs("u1").
		WillReturnRows(rows)

	profile, err := s.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UserID)
	assert.Equal(t, float64(1), profile.Fiscal["income"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT user_id, fiscal, budget, renovation, preferences, goals, updated_at").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePortfolioItemDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	item := &models.PortfolioItem{ID: "p1", UserID: "u1", PropertyID: "prop1", Status: models.PortfolioActive, CreatedAt: time.Now()}
	mock.ExpectExec("INSERT INTO portfolio_items").
		WithArgs(item.ID, item.UserID, item.PropertyID, item.Nickname, item.IsActive, string(item.Status), item.CreatedAt).
		WillReturnError(duplicateKeyError{})

	err := s.CreatePortfolioItem(context.Background(), item)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPortfolioOrdersByCreatedAt(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "property_id", "nickname", "is_active", "status", "created_at"}).
		AddRow("p2", "u1", "prop2", "", false, "active", now).
		AddRow("p1", "u1", "prop1", "Starter home", true, "active", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, user_id, property_id, nickname, is_active, status, created_at").
		WithArgs("u1").
		WillReturnRows(rows)

	items, err := s.ListPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnalysisPersistsTotals(t *testing.T) {
	s, mock := newMockStore(t)
	a := &models.AnalysisRecord{
		ID: "a1", UserID: "u1", PropertyID: "prop1", Type: models.AnalysisFull,
		Totals:    models.AnalysisTotals{CostMin: 1000, CostMax: 2000, Confidence: 0.8},
		Narrative: "looks fine", CreatedAt: time.Now(),
	}
	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(a.ID, a.UserID, a.PropertyID, string(a.Type), a.Totals.CostMin, a.Totals.CostMax, a.Totals.Confidence, a.Narrative, a.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.CreateAnalysis(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAndListMessages(t *testing.T) {
	s, mock := newMockStore(t)
	msg := models.Message{Role: models.RoleUser, Content: "olá", CreatedAt: time.Now()}
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("conv1", string(msg.Role), msg.Content, []byte("null"), msg.ToolCallID, msg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.AppendMessage(context.Background(), "conv1", msg)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"role", "content", "tool_calls", "tool_call_id", "created_at"}).
		AddRow(string(msg.Role), msg.Content, []byte("null"), "", msg.CreatedAt)
	mock.ExpectQuery("SELECT role, content, tool_calls, tool_call_id, created_at").
		WithArgs("conv1").
		WillReturnRows(rows)

	listed, err := s.ListMessages(context.Background(), "conv1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "olá", listed[0].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogAction(t *testing.T) {
	s, mock := newMockStore(t)
	entry := models.ActionLogEntry{
		UserID: "u1", ConversationID: "conv1", ActionType: "update_profile",
		EntityType: "profile", EntityID: "u1", Timestamp: time.Now(),
	}
	mock.ExpectExec("INSERT INTO action_log").
		WithArgs(entry.UserID, entry.ConversationID, entry.MessageID, entry.ActionType, entry.EntityType, entry.EntityID,
			entry.FieldChanged, entry.OldValue, entry.NewValue, entry.TriggerMessage, entry.Confidence, entry.ConfirmedByUser, entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.LogAction(context.Background(), entry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// duplicateKeyError mimics a Postgres unique-violation error message
// closely enough for isDuplicate's substring check.
type duplicateKeyError struct{}

func (duplicateKeyError) Error() string {
	return `pq: duplicate key value violates unique constraint "portfolio_items_pkey" (SQLSTATE 23505)`
}
