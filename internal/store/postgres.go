package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/armindomatias/housing-agent/internal/models"
)

// PostgresConfig configures the connection pool for a Postgres-backed store.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sensible pool defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// dbExecer is the subset of *sql.DB that both *sql.DB and *sql.Tx satisfy,
// letting every query method below run unmodified whether it's executing
// against the pool or a transaction handed down by WithTx.
type dbExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// postgresStore is the lib/pq-backed Store implementation. db is non-nil
// only for the top-level store returned by NewPostgresStoreFromDSN; a
// store instance handed to a WithTx callback has db == nil and conn set to
// the active *sql.Tx, so Close's nil guard stays correct for both.
type postgresStore struct {
	db   *sql.DB
	conn dbExecer
}

// NewPostgresStoreFromDSN opens a connection pool and pings it before
// returning, the same handshake as the teacher's NewCockroachStoresFromDSN.
func NewPostgresStoreFromDSN(dsn string, config *PostgresConfig) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &postgresStore{db: db, conn: db}, nil
}

// newPostgresStoreFromDB wraps an already-open *sql.DB; used by tests with
// github.com/DATA-DOG/go-sqlmock.
func newPostgresStoreFromDB(db *sql.DB) Store {
	return &postgresStore{db: db, conn: db}
}

func (s *postgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isDuplicate(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "23505"))
}

// --- profile ---

func (s *postgresStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT user_id, fiscal, budget, renovation, preferences, goals, updated_at
		 FROM profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var p models.Profile
	var fiscal, budget, renovation, preferences, goals []byte
	if err := row.Scan(&p.UserID, &fiscal, &budget, &renovation, &preferences, &goals, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	for _, pair := range []struct {
		raw []byte
		dst *map[string]any
	}{
		{fiscal, &p.Fiscal}, {budget, &p.Budget}, {renovation, &p.Renovation},
		{preferences, &p.Preferences}, {goals, &p.Goals},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("unmarshal profile section: %w", err)
		}
	}
	return &p, nil
}

func (s *postgresStore) UpsertProfile(ctx context.Context, userID string, section models.ProfileSection, patch map[string]any, masterSummary string) (*models.Profile, error) {
	if !section.Valid() {
		return nil, fmt.Errorf("invalid profile section: %s", section)
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	column := string(section)
	query := fmt.Sprintf(`
		INSERT INTO profiles (user_id, %s, master_summary, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET %s = profiles.%s || $2, master_summary = $3, updated_at = now()`,
		column, column, column)
	if _, err := s.conn.ExecContext(ctx, query, userID, patchJSON, masterSummary); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

func (s *postgresStore) Hydrate(ctx context.Context, userID string) (HydrateResult, error) {
	var result HydrateResult

	profile, err := s.GetProfile(ctx, userID)
	if err != nil && err != ErrNotFound {
		return result, fmt.Errorf("hydrate profile: %w", err)
	}
	if err == ErrNotFound {
		profile = &models.Profile{UserID: userID}
	}
	result.Profile = profile

	items, err := s.ListPortfolio(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("hydrate portfolio: %w", err)
	}
	var active []*models.PortfolioItem
	for _, it := range items {
		if it.Status == models.PortfolioActive {
			active = append(active, it)
		}
	}
	result.ActivePortfolioItems = active

	row := s.conn.QueryRowContext(ctx,
		`SELECT last_summary FROM conversations WHERE user_id = $1 AND last_summary != '' ORDER BY started_at DESC LIMIT 1`, userID)
	var summary string
	if err := row.Scan(&summary); err != nil && err != sql.ErrNoRows {
		return result, fmt.Errorf("hydrate session summary: %w", err)
	}
	result.LastSessionSummary = summary
	return result, nil
}

// --- property ---

func (s *postgresStore) GetPropertyByExternalID(ctx context.Context, externalURL string) (*models.Property, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, external_url, address, price, bedrooms, bathrooms, sqft, raw_scrape, created_at
		 FROM properties WHERE external_url = $1`, externalURL)
	return scanProperty(row)
}

func (s *postgresStore) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, external_url, address, price, bedrooms, bathrooms, sqft, raw_scrape, created_at
		 FROM properties WHERE id = $1`, id)
	return scanProperty(row)
}

func scanProperty(row *sql.Row) (*models.Property, error) {
	var p models.Property
	var raw []byte
	if err := row.Scan(&p.ID, &p.ExternalURL, &p.Address, &p.Price, &p.Bedrooms, &p.Bathrooms, &p.SqFt, &raw, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.RawScrape); err != nil {
			return nil, fmt.Errorf("unmarshal raw scrape: %w", err)
		}
	}
	return &p, nil
}

func (s *postgresStore) UpsertProperty(ctx context.Context, p *models.Property) (*models.Property, error) {
	if p == nil || p.ExternalURL == "" {
		return nil, fmt.Errorf("property external url is required")
	}
	raw, err := json.Marshal(p.RawScrape)
	if err != nil {
		return nil, fmt.Errorf("marshal raw scrape: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO properties (id, external_url, address, price, bedrooms, bathrooms, sqft, raw_scrape, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (external_url) DO UPDATE
		 SET address = $3, price = $4, bedrooms = $5, bathrooms = $6, sqft = $7, raw_scrape = $8`,
		p.ID, p.ExternalURL, p.Address, p.Price, p.Bedrooms, p.Bathrooms, p.SqFt, raw, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert property: %w", err)
	}
	return s.GetPropertyByExternalID(ctx, p.ExternalURL)
}

// --- portfolio ---

func (s *postgresStore) GetPortfolioItem(ctx context.Context, id string) (*models.PortfolioItem, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, property_id, nickname, is_active, status, created_at
		 FROM portfolio_items WHERE id = $1`, id)
	return scanPortfolioItem(row)
}

func scanPortfolioItem(row *sql.Row) (*models.PortfolioItem, error) {
	var it models.PortfolioItem
	var status string
	if err := row.Scan(&it.ID, &it.UserID, &it.PropertyID, &it.Nickname, &it.IsActive, &status, &it.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get portfolio item: %w", err)
	}
	it.Status = models.PortfolioStatus(status)
	return &it, nil
}

func (s *postgresStore) ListPortfolio(ctx context.Context, userID string) ([]*models.PortfolioItem, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, property_id, nickname, is_active, status, created_at
		 FROM portfolio_items WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list portfolio: %w", err)
	}
	defer rows.Close()

	items := []*models.PortfolioItem{}
	for rows.Next() {
		var it models.PortfolioItem
		var status string
		if err := rows.Scan(&it.ID, &it.UserID, &it.PropertyID, &it.Nickname, &it.IsActive, &status, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio item: %w", err)
		}
		it.Status = models.PortfolioStatus(status)
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (s *postgresStore) CreatePortfolioItem(ctx context.Context, item *models.PortfolioItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("portfolio item is required")
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO portfolio_items (id, user_id, property_id, nickname, is_active, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.UserID, item.PropertyID, item.Nickname, item.IsActive, string(item.Status), item.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create portfolio item: %w", err)
	}
	return nil
}

func (s *postgresStore) UpdatePortfolioItem(ctx context.Context, item *models.PortfolioItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("portfolio item is required")
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE portfolio_items SET nickname = $1, is_active = $2, status = $3 WHERE id = $4`,
		item.Nickname, item.IsActive, string(item.Status), item.ID)
	if err != nil {
		return fmt.Errorf("update portfolio item: %w", err)
	}
	return requireRowsAffected(res, "update portfolio item")
}

// setActiveStmts runs SetActive's two statements against whatever conn it's
// handed, so the same body serves a standalone call (own transaction) and a
// call already scoped inside WithTx (the outer transaction).
func setActiveStmts(ctx context.Context, conn dbExecer, userID, itemID string) error {
	if _, err := conn.ExecContext(ctx, `UPDATE portfolio_items SET is_active = false WHERE user_id = $1 AND is_active = true`, userID); err != nil {
		return fmt.Errorf("set active: clear previous: %w", err)
	}
	res, err := conn.ExecContext(ctx, `UPDATE portfolio_items SET is_active = true WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("set active: set new: %w", err)
	}
	return requireRowsAffected(res, "set active")
}

// SetActive unsets any currently active item for userID and sets itemID
// active, inside one transaction, preserving the "at most one active item"
// invariant from spec.md §4.2 even under concurrent turns for the same user.
// Called from inside a WithTx scope (s.db == nil), it runs against the
// outer transaction instead of opening a nested one.
func (s *postgresStore) SetActive(ctx context.Context, userID, itemID string) error {
	if s.db == nil {
		return setActiveStmts(ctx, s.conn, userID, itemID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set active: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := setActiveStmts(ctx, tx, userID, itemID); err != nil {
		return err
	}
	return tx.Commit()
}

func requireRowsAffected(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// --- analysis ---

func (s *postgresStore) GetLatestAnalysis(ctx context.Context, userID, propertyID string, analysisType models.AnalysisType) (*models.AnalysisRecord, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, property_id, type, cost_min, cost_max, confidence, narrative, created_at
		 FROM analyses WHERE user_id = $1 AND property_id = $2 AND type = $3
		 ORDER BY created_at DESC LIMIT 1`, userID, propertyID, string(analysisType))
	return scanAnalysis(row)
}

func scanAnalysis(row *sql.Row) (*models.AnalysisRecord, error) {
	var a models.AnalysisRecord
	var t string
	if err := row.Scan(&a.ID, &a.UserID, &a.PropertyID, &t, &a.Totals.CostMin, &a.Totals.CostMax, &a.Totals.Confidence, &a.Narrative, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	a.Type = models.AnalysisType(t)
	return &a, nil
}

func (s *postgresStore) CreateAnalysis(ctx context.Context, a *models.AnalysisRecord) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("analysis is required")
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, property_id, type, cost_min, cost_max, confidence, narrative, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.UserID, a.PropertyID, string(a.Type), a.Totals.CostMin, a.Totals.CostMax, a.Totals.Confidence, a.Narrative, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

func (s *postgresStore) UpdateAnalysis(ctx context.Context, a *models.AnalysisRecord) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("analysis is required")
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE analyses SET cost_min = $1, cost_max = $2, confidence = $3, narrative = $4 WHERE id = $5`,
		a.Totals.CostMin, a.Totals.CostMax, a.Totals.Confidence, a.Narrative, a.ID)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return requireRowsAffected(res, "update analysis")
}

// --- room features ---

func (s *postgresStore) GetRoomFeatures(ctx context.Context, analysisID string) ([]models.RoomFeature, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT room_key, room_type, condition, items, cost_min, cost_max, confidence, floor_plan_url
		 FROM room_features WHERE analysis_id = $1`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("get room features: %w", err)
	}
	defer rows.Close()

	features := []models.RoomFeature{}
	for rows.Next() {
		var f models.RoomFeature
		f.AnalysisID = analysisID
		var items pq.StringArray
		if err := rows.Scan(&f.RoomKey, &f.RoomType, &f.Condition, &items, &f.CostMin, &f.CostMax, &f.Confidence, &f.FloorPlanURL); err != nil {
			return nil, fmt.Errorf("scan room feature: %w", err)
		}
		f.Items = []string(items)
		features = append(features, f)
	}
	return features, rows.Err()
}

// saveRoomFeaturesStmts runs SaveRoomFeatures's clear-then-insert sequence
// against whatever conn it's handed, mirroring setActiveStmts's dual-path
// pattern.
func saveRoomFeaturesStmts(ctx context.Context, conn dbExecer, analysisID string, features []models.RoomFeature) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM room_features WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("save room features: clear: %w", err)
	}
	for _, f := range features {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO room_features (analysis_id, room_key, room_type, condition, items, cost_min, cost_max, confidence, floor_plan_url)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			analysisID, f.RoomKey, f.RoomType, f.Condition, pq.Array(f.Items), f.CostMin, f.CostMax, f.Confidence, f.FloorPlanURL)
		if err != nil {
			return fmt.Errorf("save room feature %s: %w", f.RoomKey, err)
		}
	}
	return nil
}

// SaveRoomFeatures replaces all cached room features for analysisID. Called
// from inside a WithTx scope (s.db == nil), it runs against the outer
// transaction instead of opening a nested one.
func (s *postgresStore) SaveRoomFeatures(ctx context.Context, analysisID string, features []models.RoomFeature) error {
	if s.db == nil {
		return saveRoomFeaturesStmts(ctx, s.conn, analysisID, features)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save room features: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := saveRoomFeaturesStmts(ctx, tx, analysisID, features); err != nil {
		return err
	}
	return tx.Commit()
}

// --- conversation / messages ---

func (s *postgresStore) CreateConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	c := &models.Conversation{UserID: userID, StartedAt: time.Now()}
	row := s.conn.QueryRowContext(ctx,
		`INSERT INTO conversations (user_id, started_at, message_count) VALUES ($1, $2, 0) RETURNING id`,
		userID, c.StartedAt)
	if err := row.Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (s *postgresStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, started_at, ended_at, message_count, last_summary FROM conversations WHERE id = $1`, id)
	var c models.Conversation
	var endedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &c.StartedAt, &endedAt, &c.MessageCount, &c.LastSummary); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}
	return &c, nil
}

func (s *postgresStore) EndConversation(ctx context.Context, id, summary string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE conversations SET ended_at = now(), last_summary = $1 WHERE id = $2`, summary, id)
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return requireRowsAffected(res, "end conversation")
}

func (s *postgresStore) IncrementMessageCount(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE conversations SET message_count = message_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment message count: %w", err)
	}
	return requireRowsAffected(res, "increment message count")
}

func (s *postgresStore) AppendMessage(ctx context.Context, conversationID string, msg models.Message) error {
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tool_calls, tool_call_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		conversationID, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *postgresStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		var role string
		var toolCalls []byte
		if err := rows.Scan(&role, &m.Content, &toolCalls, &m.ToolCallID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.Role(role)
		if len(toolCalls) > 0 && string(toolCalls) != "null" {
			if err := json.Unmarshal(toolCalls, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// --- audit ---

func (s *postgresStore) LogAction(ctx context.Context, entry models.ActionLogEntry) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO action_log
		 (user_id, conversation_id, message_id, action_type, entity_type, entity_id, field_changed, old_value, new_value, trigger_message, confidence, confirmed_by_user, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		entry.UserID, entry.ConversationID, entry.MessageID, entry.ActionType, entry.EntityType, entry.EntityID,
		entry.FieldChanged, entry.OldValue, entry.NewValue, entry.TriggerMessage, entry.Confidence, entry.ConfirmedByUser, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

// --- transactions ---

// WithTx opens one transaction and hands fn a Store scoped to it; every
// write fn performs runs against that transaction, committed only if fn
// returns nil. A WithTx call made from inside fn (s.db == nil here) runs fn
// directly against the already-active transaction rather than nesting.
func (s *postgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("with tx: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	scoped := &postgresStore{conn: tx}
	if err := fn(ctx, scoped); err != nil {
		return err
	}
	return tx.Commit()
}
