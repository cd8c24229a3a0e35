package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armindomatias/housing-agent/internal/models"
)

func okScraper() Scraper {
	return ScraperFunc(func(_ context.Context, _ string) (scrapedMedia, error) {
		return scrapedMedia{
			Address: "123 Main St",
			Images: []ScrapedImage{
				{URL: "img1", Tag: "kitchen"},
				{URL: "img2", Tag: "bedroom"},
				{URL: "img3", Tag: "bedroom"},
			},
		}, nil
	})
}

func okClassifier() VisionClassifier {
	return VisionClassifierFunc(func(_ context.Context, _ string) (string, float64, error) {
		return "unknown", 0.5, nil
	})
}

func splitGrouper() RoomGrouper {
	return RoomGrouperFunc(func(_ context.Context, _ string, items []classification) ([]int, string, error) {
		indices := make([]int, len(items))
		for i := range items {
			indices[i] = i + 1
		}
		return indices, "", nil
	})
}

func fixedEstimator(costMin, costMax, confidence float64) RoomEstimator {
	return RoomEstimatorFunc(func(_ context.Context, roomType string, _ []classification) (roomEstimate, error) {
		return roomEstimate{RoomType: roomType, Condition: "good", CostMin: costMin, CostMax: costMax, Confidence: confidence}, nil
	})
}

func templatedOnlySummarizer() Summarizer {
	return SummarizerFunc(func(_ context.Context, _ models.Property, _ []roomEstimate, _ models.AnalysisTotals) (string, error) {
		return "", nil
	})
}

func TestPipelineHappyPath(t *testing.T) {
	p := NewDefaultPipeline(okScraper(), okClassifier(), splitGrouper(), fixedEstimator(1000, 2000, 0.8), templatedOnlySummarizer())

	result, err := p.Run(context.Background(), Request{PropertyURL: "https://example.test/p/1"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "123 Main St", result.Property.Address)
	assert.Len(t, result.Rooms, 3)
	assert.Equal(t, 3000.0, result.Totals.CostMin)
	assert.Equal(t, 6000.0, result.Totals.CostMax)
	assert.NotEmpty(t, result.Narrative)
}

func TestAggregateTotalsEmptyIsZero(t *testing.T) {
	totals := aggregateTotals(nil)
	assert.Equal(t, 0.0, totals.CostMin)
	assert.Equal(t, 0.0, totals.CostMax)
	assert.Equal(t, 0.0, totals.Confidence)
}

func TestAggregateTotalsWithinBounds(t *testing.T) {
	estimates := []roomEstimate{
		{CostMin: 1000, CostMax: 2000, Confidence: 0.9},
		{CostMin: 500, CostMax: 8000, Confidence: 0.2},
	}
	totals := aggregateTotals(estimates)
	assert.Equal(t, 1500.0, totals.CostMin)
	assert.Equal(t, 10000.0, totals.CostMax)
	assert.GreaterOrEqual(t, totals.Confidence, 0.2)
	assert.LessOrEqual(t, totals.Confidence, 0.9)
}

func TestScrapeFailureShortCircuitsPipeline(t *testing.T) {
	failing := ScraperFunc(func(_ context.Context, _ string) (scrapedMedia, error) {
		return scrapedMedia{}, errors.New("scrape unreachable")
	})
	p := NewDefaultPipeline(failing, okClassifier(), splitGrouper(), fixedEstimator(0, 0, 0), templatedOnlySummarizer())

	s := &state{req: Request{PropertyURL: "https://example.test/p/1"}}
	runScrape(context.Background(), p.Scraper, s)
	require.Error(t, s.err)
	require.True(t, errors.Is(s.err, ErrStageFailed))

	// downstream stages must no-op once err is set
	runClassify(context.Background(), p.Classifier, s, classifySemaphoreSize)
	assert.Nil(t, s.classified)
}

func TestEstimateFallbackOnError(t *testing.T) {
	failing := RoomEstimatorFunc(func(_ context.Context, _ string, _ []classification) (roomEstimate, error) {
		return roomEstimate{}, errors.New("vision call failed")
	})
	s := &state{
		grouped: map[string][]classification{
			"kitchen_1": {{RoomType: "kitchen"}},
		},
	}
	runEstimate(context.Background(), failing, s, estimateSemaphoreSize)
	require.Len(t, s.estimates, 1)
	assert.Equal(t, fallbackConfidence, s.estimates[0].Confidence)
}
