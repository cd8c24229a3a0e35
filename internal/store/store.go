// Package store implements the durable store contract (spec.md §6): typed
// operations against the profile, property, portfolio, analysis,
// conversation, message, action-log, and room-feature tables.
package store

import (
	"context"
	"errors"

	"github.com/armindomatias/housing-agent/internal/models"
)

// Sentinel errors, mirrored from the teacher's storage package so callers
// can branch with errors.Is regardless of backend (Postgres vs in-memory).
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// HydrateResult is everything hydrate needs, gathered within the
// 3-round-trip ceiling spec.md §6 allows.
type HydrateResult struct {
	Profile             *models.Profile
	ActivePortfolioItems []*models.PortfolioItem
	LastSessionSummary  string
}

// Store is the durable store surface every tool and orchestrator node is
// injected with. Methods that take a userID filter by it; lookups by id
// alone (GetPortfolioItem, UpdatePortfolioItem, GetPropertyByID,
// GetRoomFeatures) do not, so callers check ownership of what they get.
type Store interface {
	// Profile
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, userID string, section models.ProfileSection, patch map[string]any, masterSummary string) (*models.Profile, error)

	// Hydrate: must complete within the round-trip budget in spec.md §6.
	Hydrate(ctx context.Context, userID string) (HydrateResult, error)

	// Property
	GetPropertyByExternalID(ctx context.Context, externalURL string) (*models.Property, error)
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
	UpsertProperty(ctx context.Context, p *models.Property) (*models.Property, error)

	// Portfolio
	GetPortfolioItem(ctx context.Context, id string) (*models.PortfolioItem, error)
	ListPortfolio(ctx context.Context, userID string) ([]*models.PortfolioItem, error)
	CreatePortfolioItem(ctx context.Context, item *models.PortfolioItem) error
	UpdatePortfolioItem(ctx context.Context, item *models.PortfolioItem) error
	SetActive(ctx context.Context, userID, itemID string) error

	// Analysis
	GetLatestAnalysis(ctx context.Context, userID, propertyID string, analysisType models.AnalysisType) (*models.AnalysisRecord, error)
	CreateAnalysis(ctx context.Context, a *models.AnalysisRecord) error
	UpdateAnalysis(ctx context.Context, a *models.AnalysisRecord) error

	// Room features
	GetRoomFeatures(ctx context.Context, analysisID string) ([]models.RoomFeature, error)
	SaveRoomFeatures(ctx context.Context, analysisID string, features []models.RoomFeature) error

	// Conversation / messages
	CreateConversation(ctx context.Context, userID string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	EndConversation(ctx context.Context, id, summary string) error
	IncrementMessageCount(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID string, msg models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	// Audit
	LogAction(ctx context.Context, entry models.ActionLogEntry) error

	// WithTx runs fn against a Store scoped to a single transaction: every
	// write fn performs through the Store it's handed commits atomically,
	// and any error fn returns rolls the whole sequence back, leaving the
	// store exactly as it was (spec.md §4.2 "Durable effects must be
	// applied transactionally per tool; if any effect fails the tool must
	// return an error command and leave the store untouched"). Calling
	// WithTx from inside an fn already running under WithTx reuses the
	// same transaction scope rather than nesting.
	WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	// Close releases any underlying connections.
	Close() error
}
