package models

import "time"

// Profile holds the five patchable sections of a user's master identity,
// plus the rendered master summary (§4.2 update_user_profile).
type Profile struct {
	UserID      string         `json:"user_id"`
	Fiscal      map[string]any `json:"fiscal,omitempty"`
	Budget      map[string]any `json:"budget,omitempty"`
	Renovation  map[string]any `json:"renovation,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	Goals       map[string]any `json:"goals,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ProfileSection names one of the five patchable profile sections.
type ProfileSection string

const (
	SectionFiscal      ProfileSection = "fiscal"
	SectionBudget      ProfileSection = "budget"
	SectionRenovation  ProfileSection = "renovation"
	SectionPreferences ProfileSection = "preferences"
	SectionGoals       ProfileSection = "goals"
)

// Valid reports whether s is one of the five known profile sections.
func (s ProfileSection) Valid() bool {
	switch s {
	case SectionFiscal, SectionBudget, SectionRenovation, SectionPreferences, SectionGoals:
		return true
	default:
		return false
	}
}

// Property is a scraped listing, keyed by its external URL so repeated
// scrapes of the same listing resolve to the same row.
type Property struct {
	ID          string         `json:"id"`
	ExternalURL string         `json:"external_url"`
	Address     string         `json:"address"`
	Price       float64        `json:"price"`
	Bedrooms    int            `json:"bedrooms"`
	Bathrooms   float64        `json:"bathrooms"`
	SqFt        int            `json:"sqft"`
	RawScrape   map[string]any `json:"raw_scrape,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PortfolioStatus is the lifecycle state of a PortfolioItem.
type PortfolioStatus string

const (
	PortfolioActive   PortfolioStatus = "active"
	PortfolioArchived PortfolioStatus = "archived"
)

// PortfolioItem is a user's saved reference to a property.
type PortfolioItem struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	PropertyID string          `json:"property_id"`
	Nickname   string          `json:"nickname,omitempty"`
	IsActive   bool            `json:"is_active"`
	Status     PortfolioStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AnalysisType distinguishes a full pipeline run from a cost recalculation.
type AnalysisType string

const (
	AnalysisFull           AnalysisType = "full"
	AnalysisRecalculation  AnalysisType = "recalculation"
)

// AnalysisTotals is the aggregated cost range and confidence for an analysis.
type AnalysisTotals struct {
	CostMin    float64 `json:"cost_min"`
	CostMax    float64 `json:"cost_max"`
	Confidence float64 `json:"confidence"`
}

// AnalysisRecord is a persisted analysis run (full or recalculation).
type AnalysisRecord struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	PropertyID string         `json:"property_id"`
	Type       AnalysisType   `json:"type"`
	Totals     AnalysisTotals `json:"totals"`
	Narrative  string         `json:"narrative"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RoomFeature is one room's cached classification + cost estimate, reused by
// recalculate_costs without re-running vision calls (§4.2).
type RoomFeature struct {
	AnalysisID   string   `json:"analysis_id"`
	RoomKey      string   `json:"room_key"`
	RoomType     string   `json:"room_type"`
	Condition    string   `json:"condition"`
	Items        []string `json:"items,omitempty"`
	CostMin      float64  `json:"cost_min"`
	CostMax      float64  `json:"cost_max"`
	Confidence   float64  `json:"confidence"`
	FloorPlanURL string   `json:"floor_plan_url,omitempty"`
}

// Conversation is a single chat session between a user and the orchestrator.
type Conversation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	MessageCount  int        `json:"message_count"`
	LastSummary   string     `json:"last_summary,omitempty"`
}

// ActionLogEntry is an audit record written whenever a tool mutates durable
// state, per spec.md §3 "Action log entry".
type ActionLogEntry struct {
	UserID          string    `json:"user_id"`
	ConversationID  string    `json:"conversation_id"`
	MessageID       string    `json:"message_id,omitempty"`
	ActionType      string    `json:"action_type"`
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	FieldChanged    string    `json:"field_changed,omitempty"`
	OldValue        string    `json:"old_value,omitempty"`
	NewValue        string    `json:"new_value,omitempty"`
	TriggerMessage  string    `json:"trigger_message,omitempty"`
	Confidence      float64   `json:"confidence,omitempty"`
	ConfirmedByUser bool      `json:"confirmed_by_user"`
	Timestamp       time.Time `json:"timestamp"`
}

// Todo is one entry in the orchestrator's task list.
type Todo struct {
	ID     string     `json:"id"`
	Task   string     `json:"task"`
	Status TodoStatus `json:"status"`
}

// TodoStatus is the lifecycle state of a Todo.
type TodoStatus string

const (
	TodoPending TodoStatus = "pending"
	TodoDone    TodoStatus = "done"
)

// Focus is the orchestrator's notion of what property/topic the current
// turn is centered on.
type Focus struct {
	PropertyID string `json:"property_id"`
	Topic      string `json:"topic,omitempty"`
	Depth      int    `json:"depth,omitempty"`
}
