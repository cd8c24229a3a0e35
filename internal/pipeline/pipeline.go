// Package pipeline implements the linear 5-stage analysis delegate
// (scrape → classify → group → estimate → summarize), invoked only by the
// trigger_property_analysis tool (spec.md §4.3). It is isolated from the
// rest of the core: the orchestrator and tools package see only Pipeline
// and its Request/Result types.
package pipeline

import (
	"context"
	"errors"

	"github.com/armindomatias/housing-agent/internal/models"
)

// ErrStageFailed wraps any stage's terminal error; callers branch on it to
// build a PipelineStageError tool command (spec.md §7).
var ErrStageFailed = errors.New("pipeline stage failed")

// Request is what trigger_property_analysis hands the pipeline.
type Request struct {
	PropertyURL string
	// Preferences carries the user's profile preferences. No stage reads
	// it: cost ranges come from the estimator alone.
	Preferences map[string]any
}

// Result is the pipeline's terminal output: everything trigger_property_analysis
// needs to persist property/portfolio/analysis rows and update knowledge.
type Result struct {
	Property  models.Property
	Rooms     []models.RoomFeature
	Totals    models.AnalysisTotals
	Narrative string
	// FloorPlanURLs maps room_key to a floor-plan image URL, when group
	// produced one for that room's cluster.
	FloorPlanURLs map[string]string
}

// Pipeline runs the 5-stage graph. The tool package depends only on this
// interface so it can be faked in tests without a real scraper or vision
// model.
type Pipeline interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// state flows between the 5 stages. Once err is non-nil every later stage
// is a passthrough (spec.md §4.3 "stages must check it before running").
type state struct {
	req   Request
	err   error
	prop  models.Property
	media scrapedMedia

	classified []classification
	grouped    map[string][]classification
	floorPlans map[string]string

	estimates []roomEstimate

	result *Result
}

func (s *state) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}
