package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/summaries"
	"github.com/armindomatias/housing-agent/internal/turn"
)

const updateUserProfileSchema = `{
	"type": "object",
	"properties": {
		"section": {"type": "string", "enum": ["fiscal", "budget", "renovation", "preferences", "goals"]},
		"patch":   {"type": "object"}
	},
	"required": ["section", "patch"]
}`

type updateUserProfileArgs struct {
	Section string         `json:"section"`
	Patch   map[string]any `json:"patch"`
}

// UpdateUserProfile patches one of the five profile sections, regenerates
// the section and master summaries, persists, and logs the action
// (spec.md §4.2 "update_user_profile").
func UpdateUserProfile(ctx context.Context, svc *Services, st *turn.State, raw json.RawMessage) Command {
	var args updateUserProfileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid update_user_profile arguments: %v", err))
	}
	section := models.ProfileSection(args.Section)
	if !section.Valid() {
		return Error(CategoryUserInput, fmt.Sprintf("unknown profile section: %s", args.Section))
	}
	if len(args.Patch) == 0 {
		return Error(CategoryUserInput, "update_user_profile requires a non-empty patch")
	}

	existing, err := svc.Store.GetProfile(ctx, st.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Error(CategoryTransient, fmt.Sprintf("could not load profile: %v", err))
	}
	merged := mergeProfileSection(existing, section, args.Patch)
	masterSummary := summaries.Profile(merged)

	updated, err := svc.Store.UpsertProfile(ctx, st.UserID, section, args.Patch, masterSummary)
	if err != nil {
		return Error(CategoryTransient, fmt.Sprintf("could not persist profile: %v", err))
	}

	sectionPatch := *profileSectionMap(updated, section)
	sectionSummary := summaries.ProfileSection(section, sectionPatch)
	sectionKey := fmt.Sprintf("user/%s", section)
	st.Knowledge.Write("user/profile", summaries.Profile(updated), nil, "")
	st.Knowledge.Write(sectionKey, sectionSummary, nil, "")
	st.MarkReferenced("user/profile")
	st.MarkReferenced(sectionKey)

	st.LogAction(models.ActionLogEntry{
		UserID:         st.UserID,
		ConversationID: st.ConversationID,
		ActionType:     "update_user_profile",
		EntityType:     "profile",
		EntityID:       st.UserID,
		FieldChanged:   args.Section,
		NewValue:       sectionSummary,
		Timestamp:      currentTime(),
	})
	st.Emit(turn.EventAction, map[string]any{"type": "update_user_profile", "section": args.Section})

	return Success(fmt.Sprintf("updated %s profile section", args.Section))
}

func mergeProfileSection(p *models.Profile, section models.ProfileSection, patch map[string]any) *models.Profile {
	merged := &models.Profile{}
	if p != nil {
		*merged = *p
	}
	target := profileSectionMap(merged, section)
	if *target == nil {
		*target = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		(*target)[k] = v
	}
	return merged
}

func profileSectionMap(p *models.Profile, section models.ProfileSection) *map[string]any {
	switch section {
	case models.SectionFiscal:
		return &p.Fiscal
	case models.SectionBudget:
		return &p.Budget
	case models.SectionRenovation:
		return &p.Renovation
	case models.SectionPreferences:
		return &p.Preferences
	default:
		return &p.Goals
	}
}

// currentTime returns the action-log timestamp; it wraps time.Now rather
// than reading it inline in every handler.
func currentTime() time.Time {
	return time.Now()
}
