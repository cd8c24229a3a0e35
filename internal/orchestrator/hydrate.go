package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/armindomatias/housing-agent/internal/kb"
	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/summaries"
	"github.com/armindomatias/housing-agent/internal/turn"
)

// hydrateNode creates a conversation row if needed, loads profile,
// portfolio, and prior session summary, builds the knowledge base, seeds
// the two opening system messages, replays persisted history, and
// appends the incoming user message (spec.md §4.4 "hydrate").
func hydrateNode(ctx context.Context, r *run) (string, error) {
	conversationID := r.conversationID
	if conversationID == "" {
		conv, err := r.svc.Store.CreateConversation(ctx, r.userID)
		if err != nil {
			return "", fmt.Errorf("hydrate: create conversation: %w", err)
		}
		conversationID = conv.ID
	} else {
		if _, err := r.svc.Store.GetConversation(ctx, conversationID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("hydrate: load conversation: %w", err)
			}
			conv, cerr := r.svc.Store.CreateConversation(ctx, r.userID)
			if cerr != nil {
				return "", fmt.Errorf("hydrate: create conversation: %w", cerr)
			}
			conversationID = conv.ID
		}
	}

	hydrated, err := r.svc.Store.Hydrate(ctx, r.userID)
	if err != nil {
		return "", fmt.Errorf("hydrate: %w", err)
	}

	knowledge := kb.New(storeFetcher(r.svc.Store), "user/profile", "portfolio/index")
	knowledge.Index("user/profile", summaries.Profile(hydrated.Profile), kb.SourceStore)
	knowledge.Index("portfolio/index", summaries.PortfolioIndex(hydrated.ActivePortfolioItems), kb.SourceStore)

	var focus *models.Focus
	for _, item := range hydrated.ActivePortfolioItems {
		resumoKey := fmt.Sprintf("portfolio/%s/resumo", item.ID)
		summary := fmt.Sprintf("saved property: %s", displayName(item))
		if item.IsActive {
			summary = fmt.Sprintf("active property: %s", displayName(item))
		}
		if analysis, aerr := r.svc.Store.GetLatestAnalysis(ctx, r.userID, item.PropertyID, models.AnalysisFull); aerr == nil {
			summary = summaries.Analysis(analysis)
		}
		knowledge.Index(resumoKey, summary, kb.SourceStore)
		if item.IsActive {
			knowledge.Protect(resumoKey)
			focus = &models.Focus{PropertyID: item.PropertyID}
		}
	}

	if hydrated.LastSessionSummary != "" {
		knowledge.Index("session/resumo_anterior", hydrated.LastSessionSummary, kb.SourceStore)
		knowledge.Protect("session/resumo_anterior")
	}

	st := turn.NewState(r.userID, conversationID)
	st.Knowledge = knowledge
	st.CurrentFocus = focus
	st.Emit(turn.EventThinking, nil)

	contextBlock := kb.Render(knowledge, st.Todos, st.CurrentFocus)
	st.Messages = append(st.Messages,
		models.Message{Role: models.RoleSystem, Content: r.svc.Config.SystemPrompt},
		models.Message{Role: models.RoleSystem, Content: contextBlock, SystemTag: models.SystemTagContextRefresh},
	)

	history, err := r.svc.Store.ListMessages(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("hydrate: load history: %w", err)
	}
	st.Messages = append(st.Messages, history...)

	// turnStart counts non-system messages only: reflect freely moves the
	// context_refresh system message around st.Messages, but never
	// reorders the user/assistant/tool messages this index must track.
	r.turnStart = len(history)
	st.Messages = append(st.Messages, models.Message{Role: models.RoleUser, Content: r.incoming})

	r.st = st
	r.conversationID = conversationID

	// Counted here rather than in post_process so that a turn aborted by
	// TurnBudgetExceeded still reflects the user's own message (spec.md
	// §8 scenario 6 "message count incremented only for the user turn").
	if err := r.svc.Store.IncrementMessageCount(ctx, conversationID); err != nil {
		return "", fmt.Errorf("hydrate: increment message count: %w", err)
	}

	return "agent", nil
}

// storeFetcher adapts the store into a kb.Fetcher for read_context's
// reload path. It fetches nothing: every call returns an error, so a key
// whose content is not already held in the knowledge base cannot be
// loaded through read_context, and store-sourced summaries are not
// regenerated.
func storeFetcher(s store.Store) kb.Fetcher {
	return func(key string) (string, error) {
		return "", fmt.Errorf("no stored content for derived key %s", key)
	}
}

func displayName(item *models.PortfolioItem) string {
	if item.Nickname != "" {
		return item.Nickname
	}
	return item.PropertyID
}
