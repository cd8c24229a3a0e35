package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/summaries"
	"github.com/armindomatias/housing-agent/internal/turn"
)

const saveToPortfolioSchema = `{
	"type": "object",
	"properties": {
		"property_id": {"type": "string", "minLength": 1},
		"nickname":    {"type": "string"}
	},
	"required": ["property_id"]
}`

type saveToPortfolioArgs struct {
	PropertyID string `json:"property_id"`
	Nickname   string `json:"nickname"`
}

// SaveToPortfolio adds an analysed property to the user's portfolio and
// regenerates the index summary (spec.md §4.2 "save_to_portfolio").
// Requires a prior analysis; the orchestrator only calls this after
// trigger_property_analysis has already created the analysis row.
func SaveToPortfolio(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args saveToPortfolioArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid save_to_portfolio arguments: %v", err))
	}

	analysis, err := svc.Store.GetLatestAnalysis(ctx, st.UserID, args.PropertyID, models.AnalysisFull)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Error(CategoryUserInput, "cannot save to portfolio before an analysis exists for this property")
		}
		return Error(CategoryTransient, fmt.Sprintf("could not check analysis: %v", err))
	}

	item := &models.PortfolioItem{
		ID:         uuid.NewString(),
		UserID:     st.UserID,
		PropertyID: args.PropertyID,
		Nickname:   args.Nickname,
		Status:     models.PortfolioActive,
	}
	if err := svc.Store.CreatePortfolioItem(ctx, item); err != nil {
		return Error(CategoryTransient, fmt.Sprintf("could not save property: %v", err))
	}

	if err := refreshPortfolioIndex(ctx, svc, st); err != nil {
		return Error(CategoryTransient, fmt.Sprintf("saved property but could not refresh index: %v", err))
	}

	st.LogAction(models.ActionLogEntry{
		UserID: st.UserID, ConversationID: st.ConversationID,
		ActionType: "save_to_portfolio", EntityType: "portfolio_item", EntityID: item.ID,
		NewValue: summaries.Analysis(analysis), Timestamp: currentTime(),
	})
	st.Emit(turn.EventAction, map[string]any{"type": "save_to_portfolio", "item_id": item.ID})

	return Success(fmt.Sprintf("saved property to portfolio as %s", item.ID))
}

const removeFromPortfolioSchema = `{
	"type": "object",
	"properties": {
		"item_id":   {"type": "string", "minLength": 1},
		"confirmed": {"type": "boolean"}
	},
	"required": ["item_id", "confirmed"]
}`

type removeFromPortfolioArgs struct {
	ItemID    string `json:"item_id"`
	Confirmed bool   `json:"confirmed"`
}

// RemoveFromPortfolio soft-archives a portfolio item. It requires an
// explicit confirmation signal from the caller (spec.md §4.2, end-to-end
// scenario 4: the agent must ask the user before calling this with
// confirmed=true).
func RemoveFromPortfolio(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args removeFromPortfolioArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid remove_from_portfolio arguments: %v", err))
	}
	if !args.Confirmed {
		return Error(CategoryUserInput, "remove_from_portfolio requires explicit user confirmation")
	}

	item, err := svc.Store.GetPortfolioItem(ctx, args.ItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Error(CategoryUserInput, fmt.Sprintf("no such portfolio item: %s", args.ItemID))
		}
		return Error(CategoryTransient, fmt.Sprintf("could not load portfolio item: %v", err))
	}
	if item.UserID != st.UserID {
		return Error(CategoryUserInput, fmt.Sprintf("no such portfolio item: %s", args.ItemID))
	}

	oldStatus := item.Status
	item.Status = models.PortfolioArchived
	item.IsActive = false
	if err := svc.Store.UpdatePortfolioItem(ctx, item); err != nil {
		return Error(CategoryTransient, fmt.Sprintf("could not archive portfolio item: %v", err))
	}

	if err := refreshPortfolioIndex(ctx, svc, st); err != nil {
		return Error(CategoryTransient, fmt.Sprintf("archived item but could not refresh index: %v", err))
	}

	st.LogAction(models.ActionLogEntry{
		UserID: st.UserID, ConversationID: st.ConversationID,
		ActionType: "remove_from_portfolio", EntityType: "portfolio_item", EntityID: item.ID,
		FieldChanged: "status", OldValue: string(oldStatus), NewValue: string(models.PortfolioArchived),
		ConfirmedByUser: true, Timestamp: currentTime(),
	})
	st.Emit(turn.EventAction, map[string]any{"type": "remove_from_portfolio", "item_id": item.ID})

	return Success(fmt.Sprintf("archived portfolio item %s", item.ID))
}

const switchActivePropertySchema = `{
	"type": "object",
	"properties": {
		"item_id": {"type": "string", "minLength": 1}
	},
	"required": ["item_id"]
}`

type switchActivePropertyArgs struct {
	ItemID string `json:"item_id"`
}

// SwitchActiveProperty sets is_active exclusively on one portfolio item,
// loads its analysis into the knowledge base, and updates current_focus
// (spec.md §4.2 "switch_active_property"). The "at most one active item"
// invariant is enforced by store.SetActive, not here.
func SwitchActiveProperty(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args switchActivePropertyArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid switch_active_property arguments: %v", err))
	}

	item, err := svc.Store.GetPortfolioItem(ctx, args.ItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Error(CategoryUserInput, fmt.Sprintf("no such portfolio item: %s", args.ItemID))
		}
		return Error(CategoryTransient, fmt.Sprintf("could not load portfolio item: %v", err))
	}
	if item.UserID != st.UserID {
		return Error(CategoryUserInput, fmt.Sprintf("no such portfolio item: %s", args.ItemID))
	}

	if err := svc.Store.SetActive(ctx, st.UserID, args.ItemID); err != nil {
		return Error(CategoryTransient, fmt.Sprintf("could not switch active property: %v", err))
	}

	analysis, err := svc.Store.GetLatestAnalysis(ctx, st.UserID, item.PropertyID, models.AnalysisFull)
	resumoKey := fmt.Sprintf("portfolio/%s/resumo", item.ID)
	analiseKey := fmt.Sprintf("portfolio/%s/analise", item.ID)
	if err == nil {
		rooms, _ := svc.Store.GetRoomFeatures(ctx, analysis.ID)
		st.Knowledge.Write(resumoKey, summaries.Analysis(analysis), nil, "")
		detail := summaries.AnalysisDetail(analysis, rooms)
		st.Knowledge.Write(analiseKey, "full analysis breakdown", &detail, "")
		st.Knowledge.Protect(resumoKey)
	}

	st.CurrentFocus = &models.Focus{PropertyID: item.PropertyID}
	st.MarkReferenced(resumoKey)
	st.MarkReferenced(analiseKey)

	st.LogAction(models.ActionLogEntry{
		UserID: st.UserID, ConversationID: st.ConversationID,
		ActionType: "switch_active_property", EntityType: "portfolio_item", EntityID: item.ID,
		Timestamp: currentTime(),
	})
	st.Emit(turn.EventAction, map[string]any{"type": "switch_active_property", "item_id": item.ID})

	return Success(fmt.Sprintf("switched active property to %s", item.ID))
}

const searchPortfolioSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1}
	},
	"required": ["query"]
}`

type searchPortfolioArgs struct {
	Query string `json:"query"`
}

// SearchPortfolio resolves a natural-language reference to a property id
// via keyword matching against nickname/location/price (spec.md §4.2
// "search_portfolio"). Read-only: it never mutates state or the store.
func SearchPortfolio(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args searchPortfolioArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid search_portfolio arguments: %v", err))
	}

	items, err := svc.Store.ListPortfolio(ctx, st.UserID)
	if err != nil {
		return Error(CategoryTransient, fmt.Sprintf("could not search portfolio: %v", err))
	}

	keywords := tokenize(args.Query)
	type scored struct {
		item  *models.PortfolioItem
		count int
	}
	var candidates []scored
	for _, it := range items {
		if it.Status != models.PortfolioActive {
			continue
		}
		prop, err := svc.Store.GetPropertyByID(ctx, it.PropertyID)
		haystack := strings.ToLower(it.Nickname)
		if err == nil {
			haystack += " " + strings.ToLower(prop.Address) + " " + strconv.FormatFloat(prop.Price, 'f', 0, 64)
		}
		count := 0
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				count++
			}
		}
		if count > 0 {
			candidates = append(candidates, scored{item: it, count: count})
		}
	}

	if len(candidates) == 0 {
		return Success("no matching property found")
	}

	// Highest keyword-match count first; equal counts are ordered by
	// CreatedAt, newest first (no last-active time is tracked). When the
	// top two counts tie, the whole candidate list is returned.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].item.CreatedAt.After(candidates[j].item.CreatedAt)
	})

	if len(candidates) > 1 && candidates[0].count == candidates[1].count {
		var lines []string
		for _, c := range candidates {
			lines = append(lines, fmt.Sprintf("%s (%s)", c.item.ID, c.item.Nickname))
		}
		return Success("multiple candidates match: " + strings.Join(lines, ", "))
	}

	return Success(fmt.Sprintf("best match: %s (%s)", candidates[0].item.ID, candidates[0].item.Nickname))
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func refreshPortfolioIndex(ctx context.Context, svc *Services, st *turn.State) error {
	items, err := svc.Store.ListPortfolio(ctx, st.UserID)
	if err != nil {
		return err
	}
	index := summaries.PortfolioIndex(items)
	st.Knowledge.Write("portfolio/index", index, nil, "")
	st.MarkReferenced("portfolio/index")
	return nil
}
