package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armindomatias/housing-agent/internal/models"
)

// memoryStore is an in-memory Store used by tests and local development,
// grounded on the teacher's MemoryAgentStore: a single mutex guarding a set
// of maps, no persistence across process restarts.
type memoryStore struct {
	mu sync.RWMutex

	profiles      map[string]*models.Profile
	properties    map[string]*models.Property // keyed by external URL
	portfolio     map[string]*models.PortfolioItem
	analyses      map[string]*models.AnalysisRecord
	roomFeatures  map[string][]models.RoomFeature // keyed by analysis ID
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message // keyed by conversation ID
	actionLog     []models.ActionLogEntry
}

// NewMemoryStore returns a Store backed entirely by in-process maps.
func NewMemoryStore() Store {
	return &memoryStore{
		profiles:      make(map[string]*models.Profile),
		properties:    make(map[string]*models.Property),
		portfolio:     make(map[string]*models.PortfolioItem),
		analyses:      make(map[string]*models.AnalysisRecord),
		roomFeatures:  make(map[string][]models.RoomFeature),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (s *memoryStore) Close() error { return nil }

// memorySnapshot is a deep copy of every map memoryStore guards, used by
// WithTx to roll back a failed sequence of writes.
type memorySnapshot struct {
	profiles      map[string]*models.Profile
	properties    map[string]*models.Property
	portfolio     map[string]*models.PortfolioItem
	analyses      map[string]*models.AnalysisRecord
	roomFeatures  map[string][]models.RoomFeature
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	actionLog     []models.ActionLogEntry
}

// snapshotLocked must be called with s.mu held.
func (s *memoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		profiles:      make(map[string]*models.Profile, len(s.profiles)),
		properties:    make(map[string]*models.Property, len(s.properties)),
		portfolio:     make(map[string]*models.PortfolioItem, len(s.portfolio)),
		analyses:      make(map[string]*models.AnalysisRecord, len(s.analyses)),
		roomFeatures:  make(map[string][]models.RoomFeature, len(s.roomFeatures)),
		conversations: make(map[string]*models.Conversation, len(s.conversations)),
		messages:      make(map[string][]models.Message, len(s.messages)),
		actionLog:     append([]models.ActionLogEntry(nil), s.actionLog...),
	}
	for k, v := range s.profiles {
		snap.profiles[k] = cloneProfile(v)
	}
	for k, v := range s.properties {
		cp := *v
		snap.properties[k] = &cp
	}
	for k, v := range s.portfolio {
		cp := *v
		snap.portfolio[k] = &cp
	}
	for k, v := range s.analyses {
		cp := *v
		snap.analyses[k] = &cp
	}
	for k, v := range s.roomFeatures {
		snap.roomFeatures[k] = append([]models.RoomFeature(nil), v...)
	}
	for k, v := range s.conversations {
		cp := *v
		snap.conversations[k] = &cp
	}
	for k, v := range s.messages {
		snap.messages[k] = append([]models.Message(nil), v...)
	}
	return snap
}

// restoreLocked must be called with s.mu held.
func (s *memoryStore) restoreLocked(snap memorySnapshot) {
	s.profiles = snap.profiles
	s.properties = snap.properties
	s.portfolio = snap.portfolio
	s.analyses = snap.analyses
	s.roomFeatures = snap.roomFeatures
	s.conversations = snap.conversations
	s.messages = snap.messages
	s.actionLog = snap.actionLog
}

// WithTx snapshots the store, runs fn against it directly (the in-memory
// store has no real transaction primitive), and restores the snapshot if fn
// returns an error so the store ends up untouched, matching the Postgres
// backend's rollback-on-error contract.
func (s *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Fiscal = cloneMap(p.Fiscal)
	cp.Budget = cloneMap(p.Budget)
	cp.Renovation = cloneMap(p.Renovation)
	cp.Preferences = cloneMap(p.Preferences)
	cp.Goals = cloneMap(p.Goals)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (s *memoryStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *memoryStore) UpsertProfile(_ context.Context, userID string, section models.ProfileSection, patch map[string]any, masterSummary string) (*models.Profile, error) {
	if !section.Valid() {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = &models.Profile{UserID: userID}
		s.profiles[userID] = p
	}
	target := profileSectionMap(p, section)
	for k, v := range patch {
		(*target)[k] = v
	}
	_ = masterSummary
	p.UpdatedAt = time.Now()
	return cloneProfile(p), nil
}

func profileSectionMap(p *models.Profile, section models.ProfileSection) *map[string]any {
	switch section {
	case models.SectionFiscal:
		if p.Fiscal == nil {
			p.Fiscal = map[string]any{}
		}
		return &p.Fiscal
	case models.SectionBudget:
		if p.Budget == nil {
			p.Budget = map[string]any{}
		}
		return &p.Budget
	case models.SectionRenovation:
		if p.Renovation == nil {
			p.Renovation = map[string]any{}
		}
		return &p.Renovation
	case models.SectionPreferences:
		if p.Preferences == nil {
			p.Preferences = map[string]any{}
		}
		return &p.Preferences
	default:
		if p.Goals == nil {
			p.Goals = map[string]any{}
		}
		return &p.Goals
	}
}

func (s *memoryStore) Hydrate(ctx context.Context, userID string) (HydrateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result HydrateResult
	if p, ok := s.profiles[userID]; ok {
		result.Profile = cloneProfile(p)
	} else {
		result.Profile = &models.Profile{UserID: userID}
	}

	var items []*models.PortfolioItem
	for _, it := range s.portfolio {
		if it.UserID == userID {
			cp := *it
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	for _, it := range items {
		if it.Status == models.PortfolioActive {
			result.ActivePortfolioItems = append(result.ActivePortfolioItems, it)
		}
	}

	var latest *models.Conversation
	for _, c := range s.conversations {
		if c.UserID != userID || c.LastSummary == "" {
			continue
		}
		if latest == nil || c.StartedAt.After(latest.StartedAt) {
			latest = c
		}
	}
	if latest != nil {
		result.LastSessionSummary = latest.LastSummary
	}
	return result, nil
}

func (s *memoryStore) GetPropertyByExternalID(_ context.Context, externalURL string) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[externalURL]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) GetPropertyByID(_ context.Context, id string) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.properties {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) UpsertProperty(_ context.Context, p *models.Property) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	s.properties[p.ExternalURL] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) GetPortfolioItem(_ context.Context, id string) (*models.PortfolioItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.portfolio[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *memoryStore) ListPortfolio(_ context.Context, userID string) ([]*models.PortfolioItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []*models.PortfolioItem{}
	for _, it := range s.portfolio {
		if it.UserID == userID {
			cp := *it
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s *memoryStore) CreatePortfolioItem(_ context.Context, item *models.PortfolioItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, exists := s.portfolio[item.ID]; exists {
		return ErrAlreadyExists
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	cp := *item
	s.portfolio[item.ID] = &cp
	return nil
}

func (s *memoryStore) UpdatePortfolioItem(_ context.Context, item *models.PortfolioItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.portfolio[item.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *item
	cp.UserID = existing.UserID
	cp.CreatedAt = existing.CreatedAt
	s.portfolio[item.ID] = &cp
	return nil
}

func (s *memoryStore) SetActive(_ context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.portfolio[itemID]
	if !ok || target.UserID != userID {
		return ErrNotFound
	}
	for _, it := range s.portfolio {
		if it.UserID == userID {
			it.IsActive = it.ID == itemID
		}
	}
	return nil
}

func (s *memoryStore) GetLatestAnalysis(_ context.Context, userID, propertyID string, analysisType models.AnalysisType) (*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.AnalysisRecord
	for _, a := range s.analyses {
		if a.UserID != userID || a.PropertyID != propertyID || a.Type != analysisType {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memoryStore) CreateAnalysis(_ context.Context, a *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cp := *a
	s.analyses[a.ID] = &cp
	return nil
}

func (s *memoryStore) UpdateAnalysis(_ context.Context, a *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.analyses[a.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *a
	cp.CreatedAt = existing.CreatedAt
	s.analyses[a.ID] = &cp
	return nil
}

func (s *memoryStore) GetRoomFeatures(_ context.Context, analysisID string) ([]models.RoomFeature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	features := s.roomFeatures[analysisID]
	out := make([]models.RoomFeature, len(features))
	copy(out, features)
	return out, nil
}

func (s *memoryStore) SaveRoomFeatures(_ context.Context, analysisID string, features []models.RoomFeature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]models.RoomFeature, len(features))
	copy(cp, features)
	s.roomFeatures[analysisID] = cp
	return nil
}

func (s *memoryStore) CreateConversation(_ context.Context, userID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Conversation{ID: uuid.NewString(), UserID: userID, StartedAt: time.Now()}
	s.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memoryStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryStore) EndConversation(_ context.Context, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	c.EndedAt = &now
	c.LastSummary = summary
	return nil
}

func (s *memoryStore) IncrementMessageCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.MessageCount++
	return nil
}

func (s *memoryStore) AppendMessage(_ context.Context, conversationID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return nil
}

func (s *memoryStore) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memoryStore) LogAction(_ context.Context, entry models.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.actionLog = append(s.actionLog, entry)
	return nil
}
