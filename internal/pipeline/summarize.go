package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/armindomatias/housing-agent/internal/models"
)

// Summarizer produces the narrative text for a completed analysis. A
// failed call falls back to a templated string (spec.md §4.3), never a
// pipeline error — summarize never short-circuits the tool's result.
type Summarizer interface {
	Summarize(ctx context.Context, prop models.Property, estimates []roomEstimate, totals models.AnalysisTotals) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, prop models.Property, estimates []roomEstimate, totals models.AnalysisTotals) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, prop models.Property, estimates []roomEstimate, totals models.AnalysisTotals) (string, error) {
	return f(ctx, prop, estimates, totals)
}

func templatedSummary(prop models.Property, estimates []roomEstimate, totals models.AnalysisTotals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated renovation cost for %s: $%.0f-$%.0f (confidence %.0f%%).\n", prop.Address, totals.CostMin, totals.CostMax, totals.Confidence*100)
	for _, e := range estimates {
		fmt.Fprintf(&b, "- %s: %s, $%.0f-$%.0f\n", e.RoomKey, e.Condition, e.CostMin, e.CostMax)
	}
	return b.String()
}

func runSummarize(ctx context.Context, summarizer Summarizer, s *state) {
	if s.err != nil {
		return
	}

	totals := aggregateTotals(s.estimates)

	narrative, err := summarizer.Summarize(ctx, s.prop, s.estimates, totals)
	if err != nil || strings.TrimSpace(narrative) == "" {
		narrative = templatedSummary(s.prop, s.estimates, totals)
	}

	rooms := make([]models.RoomFeature, 0, len(s.estimates))
	for _, e := range s.estimates {
		rooms = append(rooms, models.RoomFeature{
			RoomKey:      e.RoomKey,
			RoomType:     e.RoomType,
			Condition:    e.Condition,
			Items:        e.Items,
			CostMin:      e.CostMin,
			CostMax:      e.CostMax,
			Confidence:   e.Confidence,
			FloorPlanURL: s.floorPlans[e.RoomKey],
		})
	}

	s.result = &Result{
		Property:      s.prop,
		Rooms:         rooms,
		Totals:        totals,
		Narrative:     narrative,
		FloorPlanURLs: s.floorPlans,
	}
}

// aggregateTotals computes the overall cost range and a confidence that is
// a weighted mean of per-room confidence, weighted by cost_max (spec.md
// §4.3 "expensive rooms dominate overall confidence"). Zero rooms yields
// [0, 0] and confidence 0 (spec.md §8 boundary behavior).
func aggregateTotals(estimates []roomEstimate) models.AnalysisTotals {
	if len(estimates) == 0 {
		return models.AnalysisTotals{}
	}

	var costMin, costMax, weightedConfidence, weightSum float64
	for _, e := range estimates {
		costMin += e.CostMin
		costMax += e.CostMax
		weightedConfidence += e.Confidence * e.CostMax
		weightSum += e.CostMax
	}

	confidence := 0.0
	if weightSum > 0 {
		confidence = weightedConfidence / weightSum
	}

	return models.AnalysisTotals{
		CostMin:    costMin,
		CostMax:    costMax,
		Confidence: confidence,
	}
}
