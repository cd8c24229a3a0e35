package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/pipeline"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/summaries"
	"github.com/armindomatias/housing-agent/internal/turn"
)

const triggerPropertyAnalysisSchema = `{
	"type": "object",
	"properties": {
		"property_url": {"type": "string", "minLength": 1}
	},
	"required": ["property_url"]
}`

type triggerPropertyAnalysisArgs struct {
	PropertyURL string `json:"property_url"`
}

// TriggerPropertyAnalysis invokes the analysis pipeline delegate and, only
// on success, persists property/portfolio/analysis rows and updates
// knowledge and focus (spec.md §4.2, §8 "no new row exists ... for any
// trigger_property_analysis that returns a tool-error command").
func TriggerPropertyAnalysis(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args triggerPropertyAnalysisArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid trigger_property_analysis arguments: %v", err))
	}

	profile, err := svc.Store.GetProfile(ctx, st.UserID)
	preferences := map[string]any{}
	if err == nil && profile != nil {
		preferences = profile.Preferences
	}

	result, err := svc.Pipeline.Run(ctx, pipeline.Request{PropertyURL: args.PropertyURL, Preferences: preferences})
	if err != nil {
		if errors.Is(err, pipeline.ErrStageFailed) {
			return Error(CategoryPipeline, fmt.Sprintf("analysis failed: %v", err))
		}
		return Error(CategoryTransient, fmt.Sprintf("analysis failed: %v", err))
	}

	prop := result.Property
	prop.ExternalURL = args.PropertyURL

	var savedProp *models.Property
	item := &models.PortfolioItem{
		ID:         uuid.NewString(),
		UserID:     st.UserID,
		PropertyID: "",
		Status:     models.PortfolioActive,
	}
	analysis := &models.AnalysisRecord{
		ID:        uuid.NewString(),
		UserID:    st.UserID,
		Type:      models.AnalysisFull,
		Totals:    result.Totals,
		Narrative: result.Narrative,
	}
	rooms := make([]models.RoomFeature, len(result.Rooms))
	for i, r := range result.Rooms {
		r.AnalysisID = analysis.ID
		rooms[i] = r
	}

	// All five writes below must land atomically (spec.md §4.2 "Durable
	// effects must be applied transactionally per tool"): a failure partway
	// through must leave no property, portfolio item, analysis, room
	// feature, or active-item flip behind.
	txErr := svc.Store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		savedProp, err = tx.UpsertProperty(ctx, &prop)
		if err != nil {
			return fmt.Errorf("could not save property: %w", err)
		}
		item.PropertyID = savedProp.ID
		analysis.PropertyID = savedProp.ID

		if err := tx.CreatePortfolioItem(ctx, item); err != nil {
			return fmt.Errorf("could not save portfolio item: %w", err)
		}
		if err := tx.CreateAnalysis(ctx, analysis); err != nil {
			return fmt.Errorf("could not save analysis: %w", err)
		}
		if err := tx.SaveRoomFeatures(ctx, analysis.ID, rooms); err != nil {
			return fmt.Errorf("could not save room features: %w", err)
		}
		if err := tx.SetActive(ctx, st.UserID, item.ID); err != nil {
			return fmt.Errorf("could not activate portfolio item: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return Error(CategoryTransient, txErr.Error())
	}

	if err := refreshPortfolioIndex(ctx, svc, st); err != nil {
		return Error(CategoryTransient, fmt.Sprintf("saved analysis but could not refresh index: %v", err))
	}
	resumoKey := fmt.Sprintf("portfolio/%s/resumo", item.ID)
	analiseKey := fmt.Sprintf("portfolio/%s/analise", item.ID)
	st.Knowledge.Write(resumoKey, summaries.Analysis(analysis), nil, "")
	detail := summaries.AnalysisDetail(analysis, rooms)
	st.Knowledge.Write(analiseKey, "full analysis breakdown", &detail, "")
	st.Knowledge.Protect(resumoKey)
	st.MarkReferenced(resumoKey)
	st.MarkReferenced(analiseKey)

	st.CurrentFocus = &models.Focus{PropertyID: savedProp.ID}

	st.LogAction(models.ActionLogEntry{
		UserID: st.UserID, ConversationID: st.ConversationID,
		ActionType: "analysis_trigger", EntityType: "analysis", EntityID: analysis.ID,
		NewValue: summaries.Analysis(analysis), Timestamp: currentTime(),
	})
	st.Emit(turn.EventAction, map[string]any{"type": "analysis_trigger", "item_id": item.ID, "analysis_id": analysis.ID})

	return Success(fmt.Sprintf("analysis complete: %s", summaries.Analysis(analysis)))
}

const recalculateCostsSchema = `{
	"type": "object",
	"properties": {
		"item_id": {"type": "string", "minLength": 1}
	},
	"required": ["item_id"]
}`

type recalculateCostsArgs struct {
	ItemID string `json:"item_id"`
}

// RecalculateCosts recomputes totals from the latest full analysis's
// cached room features, without re-running any vision calls (spec.md §4.2
// "recalculate_costs"). The totals come from the cached cost ranges
// alone; the user's current preferences are not read.
func RecalculateCosts(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args recalculateCostsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid recalculate_costs arguments: %v", err))
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

	prior, err := svc.Store.GetLatestAnalysis(ctx, st.UserID, item.PropertyID, models.AnalysisFull)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Error(CategoryUserInput, "no analysis exists yet for this property")
		}
		return Error(CategoryTransient, fmt.Sprintf("could not load analysis: %v", err))
	}

	rooms, err := svc.Store.GetRoomFeatures(ctx, prior.ID)
	if err != nil {
		return Error(CategoryTransient, fmt.Sprintf("could not load room features: %v", err))
	}

	totals := recomputeTotals(rooms)
	updated := &models.AnalysisRecord{
		ID:         uuid.NewString(),
		UserID:     st.UserID,
		PropertyID: item.PropertyID,
		Type:       models.AnalysisRecalculation,
		Totals:     totals,
		Narrative:  prior.Narrative,
	}
	// Both writes below must land atomically (spec.md §4.2 "Durable effects
	// must be applied transactionally per tool").
	txErr := svc.Store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateAnalysis(ctx, updated); err != nil {
			return fmt.Errorf("could not save recalculation: %w", err)
		}
		if err := tx.SaveRoomFeatures(ctx, updated.ID, rooms); err != nil {
			return fmt.Errorf("could not save room features: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return Error(CategoryTransient, txErr.Error())
	}

	resumoKey := fmt.Sprintf("portfolio/%s/resumo", item.ID)
	st.Knowledge.Write(resumoKey, summaries.Analysis(updated), nil, "")
	st.MarkReferenced(resumoKey)

	st.LogAction(models.ActionLogEntry{
		UserID: st.UserID, ConversationID: st.ConversationID,
		ActionType: "recalculate_costs", EntityType: "analysis", EntityID: updated.ID,
		OldValue: summaries.Analysis(prior), NewValue: summaries.Analysis(updated), Timestamp: currentTime(),
	})
	st.Emit(turn.EventAction, map[string]any{"type": "recalculate_costs", "item_id": item.ID})

	return Success(fmt.Sprintf("recalculated: %s", summaries.Analysis(updated)))
}

// recomputeTotals mirrors pipeline's weighted-mean aggregation (spec.md
// §4.3) over cached room features rather than fresh estimates.
func recomputeTotals(rooms []models.RoomFeature) models.AnalysisTotals {
	if len(rooms) == 0 {
		return models.AnalysisTotals{}
	}
	var costMin, costMax, weightedConfidence, weightSum float64
	for _, r := range rooms {
		costMin += r.CostMin
		costMax += r.CostMax
		weightedConfidence += r.Confidence * r.CostMax
		weightSum += r.CostMax
	}
	confidence := 0.0
	if weightSum > 0 {
		confidence = weightedConfidence / weightSum
	}
	return models.AnalysisTotals{CostMin: costMin, CostMax: costMax, Confidence: confidence}
}
