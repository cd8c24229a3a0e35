package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/models"
)

// LLMStages backs classify, group, estimate and summarize with a single
// text-completion model, the same provider the orchestrator's agent node
// uses (internal/llm.Provider has no multimodal content blocks, so these
// prompts reason over the image URL and any scraper-supplied tag rather
// than pixel data — a deliberate seam, not an oversight).
type LLMStages struct {
	Provider llm.Provider
	Model    string
}

// NewLLMStages builds the four vision/summarize seams from one provider.
func NewLLMStages(provider llm.Provider, model string) *LLMStages {
	return &LLMStages{Provider: provider, Model: model}
}

func (s *LLMStages) complete(ctx context.Context, system, prompt string) (string, error) {
	result, err := s.Provider.Complete(ctx, &llm.CompletionRequest{
		Model:     s.Model,
		System:    system,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

const classifySystemPrompt = `You classify real-estate listing photos by room type. Respond with JSON only: {"room_type": "kitchen|bedroom|bathroom|living_room|exterior|other", "confidence": 0.0-1.0}.`

// ClassifyImage implements VisionClassifier.
func (s *LLMStages) ClassifyImage(ctx context.Context, imageURL string) (string, float64, error) {
	text, err := s.complete(ctx, classifySystemPrompt, fmt.Sprintf("Image URL: %s", imageURL))
	if err != nil {
		return "", 0, err
	}
	var parsed struct {
		RoomType   string  `json:"room_type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return "", 0, fmt.Errorf("llm classify: parse response: %w", err)
	}
	return parsed.RoomType, parsed.Confidence, nil
}

const groupSystemPrompt = `You cluster real-estate photos of the same room type into distinct room instances (e.g. 3 bedroom photos may span 2 different bedrooms). Respond with JSON only: {"cluster_index": [1,1,2], "floor_plan_url": ""}. cluster_index has one entry per input image in order, starting at 1.`

// Group implements RoomGrouper.
func (s *LLMStages) Group(ctx context.Context, roomType string, items []classification) ([]int, string, error) {
	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.ImageURL
	}
	prompt := fmt.Sprintf("Room type: %s\nImages:\n%s", roomType, strings.Join(urls, "\n"))
	text, err := s.complete(ctx, groupSystemPrompt, prompt)
	if err != nil {
		return nil, "", err
	}
	var parsed struct {
		ClusterIndex []int  `json:"cluster_index"`
		FloorPlanURL string `json:"floor_plan_url"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return nil, "", fmt.Errorf("llm group: parse response: %w", err)
	}
	if len(parsed.ClusterIndex) != len(items) {
		return nil, "", fmt.Errorf("llm group: expected %d cluster indices, got %d", len(items), len(parsed.ClusterIndex))
	}
	return parsed.ClusterIndex, parsed.FloorPlanURL, nil
}

const estimateSystemPrompt = `You assess a property room's condition from its photos and estimate a renovation cost range in USD. Respond with JSON only: {"condition": "excellent|good|fair|poor", "items": ["..."], "cost_min": 0, "cost_max": 0, "confidence": 0.0-1.0}.`

// Estimate implements RoomEstimator.
func (s *LLMStages) Estimate(ctx context.Context, roomType string, images []classification) (roomEstimate, error) {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.ImageURL
	}
	prompt := fmt.Sprintf("Room type: %s\nImages:\n%s", roomType, strings.Join(urls, "\n"))
	text, err := s.complete(ctx, estimateSystemPrompt, prompt)
	if err != nil {
		return roomEstimate{}, err
	}
	var parsed struct {
		Condition  string   `json:"condition"`
		Items      []string `json:"items"`
		CostMin    float64  `json:"cost_min"`
		CostMax    float64  `json:"cost_max"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return roomEstimate{}, fmt.Errorf("llm estimate: parse response: %w", err)
	}
	return roomEstimate{
		RoomType:   roomType,
		Condition:  parsed.Condition,
		Items:      parsed.Items,
		CostMin:    parsed.CostMin,
		CostMax:    parsed.CostMax,
		Confidence: parsed.Confidence,
	}, nil
}

const summarizeSystemPrompt = `You write a two-paragraph renovation summary for a first-time home buyer, covering overall condition and the biggest cost drivers. Plain text, no markdown.`

// Summarize implements Summarizer. A failed call falls back to the
// templated string, matching spec.md §4.3's "summarize never
// short-circuits the tool's result."
func (s *LLMStages) Summarize(ctx context.Context, prop models.Property, estimates []roomEstimate, totals models.AnalysisTotals) (string, error) {
	var rooms strings.Builder
	for _, e := range estimates {
		fmt.Fprintf(&rooms, "- %s: %s, $%.0f-$%.0f\n", e.RoomType, e.Condition, e.CostMin, e.CostMax)
	}
	prompt := fmt.Sprintf("Property: %s\nTotal estimated cost: $%.0f-$%.0f (confidence %.0f%%)\nRooms:\n%s",
		prop.Address, totals.CostMin, totals.CostMax, totals.Confidence*100, rooms.String())
	text, err := s.complete(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		return templatedSummary(prop, estimates, totals), nil
	}
	return text, nil
}

// extractJSON trims any leading/trailing prose a model adds around the
// JSON object it was asked for.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
