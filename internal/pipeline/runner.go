package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/armindomatias/housing-agent/internal/observability"
)

// DefaultPipeline wires the 5 stages behind their respective external
// seams. All four vision/scrape seams are interfaces so orchestrator and
// tools tests can fake the whole pipeline without network access.
type DefaultPipeline struct {
	Scraper    Scraper
	Classifier VisionClassifier
	Grouper    RoomGrouper
	Estimator  RoomEstimator
	Summarizer Summarizer

	// ClassifyConcurrency/EstimateConcurrency override the package defaults
	// (classifySemaphoreSize/estimateSemaphoreSize) when positive; left
	// zero, the pipeline falls back to those defaults.
	ClassifyConcurrency int
	EstimateConcurrency int

	// Metrics is optional; a nil value disables per-stage instrumentation.
	Metrics *observability.Metrics
}

// NewDefaultPipeline builds a DefaultPipeline from its stage dependencies.
func NewDefaultPipeline(scraper Scraper, classifier VisionClassifier, grouper RoomGrouper, estimator RoomEstimator, summarizer Summarizer) *DefaultPipeline {
	return &DefaultPipeline{
		Scraper:    scraper,
		Classifier: classifier,
		Grouper:    grouper,
		Estimator:  estimator,
		Summarizer: summarizer,
	}
}

// WithMetrics sets the pipeline's metrics sink and returns the receiver,
// so callers can chain it onto NewDefaultPipeline.
func (p *DefaultPipeline) WithMetrics(m *observability.Metrics) *DefaultPipeline {
	p.Metrics = m
	return p
}

// WithConcurrency overrides the classify/estimate semaphore sizes (config.
// PipelineConfig) and returns the receiver for chaining.
func (p *DefaultPipeline) WithConcurrency(classify, estimate int) *DefaultPipeline {
	p.ClassifyConcurrency = classify
	p.EstimateConcurrency = estimate
	return p
}

func (p *DefaultPipeline) classifyConcurrency() int {
	if p.ClassifyConcurrency > 0 {
		return p.ClassifyConcurrency
	}
	return classifySemaphoreSize
}

func (p *DefaultPipeline) estimateConcurrency() int {
	if p.EstimateConcurrency > 0 {
		return p.EstimateConcurrency
	}
	return estimateSemaphoreSize
}

// Run executes scrape → classify → group → estimate → summarize in order.
// A failure in any stage short-circuits the rest via state.err (spec.md
// §4.3); Run returns that error wrapped in ErrStageFailed, and no partial
// Result — the tool must not commit anything to the durable store.
func (p *DefaultPipeline) Run(ctx context.Context, req Request) (*Result, error) {
	s := &state{req: req}

	p.timedStage(ctx, "scrape", s, func() { runScrape(ctx, p.Scraper, s) })
	p.timedStage(ctx, "classify", s, func() { runClassify(ctx, p.Classifier, s, p.classifyConcurrency()) })
	p.timedStage(ctx, "group", s, func() { runGroup(ctx, p.Grouper, s) })
	p.timedStage(ctx, "estimate", s, func() { runEstimate(ctx, p.Estimator, s, p.estimateConcurrency()) })
	p.timedStage(ctx, "summarize", s, func() { runSummarize(ctx, p.Summarizer, s) })

	if s.err != nil {
		return nil, fmt.Errorf("analysis pipeline: %w", s.err)
	}
	return s.result, nil
}

// timedStage records PipelineStageDuration/PipelineStageErrors around one
// stage, if a metrics sink is configured. A stage that was already
// short-circuited by an earlier failure (s.err already set) is skipped
// for timing purposes, since the stage function itself no-ops.
func (p *DefaultPipeline) timedStage(_ context.Context, name string, s *state, fn func()) {
	if p.Metrics == nil || s.err != nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	p.Metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if s.err != nil {
		p.Metrics.PipelineStageErrors.WithLabelValues(name).Inc()
	}
}
