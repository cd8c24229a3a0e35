package pipeline

import (
	"context"
	"fmt"

	"github.com/armindomatias/housing-agent/internal/backoff"
)

// scrapeAttempts and scrapeBaseMs implement spec.md §4.3's scrape retry
// policy: 3 attempts, base 2s, exponential.
const (
	scrapeAttempts  = 3
	scrapeBaseMs    = 2000
	scrapeMaxMs     = 16000
)

var scrapePolicy = backoff.BackoffPolicy{
	InitialMs: scrapeBaseMs,
	MaxMs:     scrapeMaxMs,
	Factor:    2,
	Jitter:    0.2,
}

// scrapedMedia is what the external scraping adapter returns for one
// listing: the structured property fields plus its image set.
type scrapedMedia struct {
	Address     string
	Price       float64
	Bedrooms    int
	Bathrooms   float64
	SqFt        int
	RawScrape   map[string]any
	Images      []ScrapedImage
}

// ScrapedImage is one listing photo, with an optional pre-tagged room hint
// the scraper's own metadata supplied (e.g. from listing-site captions).
type ScrapedImage struct {
	URL string
	Tag string // room type hint, may be empty
}

// Scraper is the external property-scraping adapter the spec explicitly
// places out of core scope (spec.md §1): the pipeline only consumes its
// result shape.
type Scraper interface {
	Scrape(ctx context.Context, propertyURL string) (scrapedMedia, error)
}

// ScraperFunc adapts a plain function to Scraper.
type ScraperFunc func(ctx context.Context, propertyURL string) (scrapedMedia, error)

func (f ScraperFunc) Scrape(ctx context.Context, propertyURL string) (scrapedMedia, error) {
	return f(ctx, propertyURL)
}

// FixtureScraper returns a scraper that never calls out to a real service,
// used when the scraper is disabled (spec.md §4.3 "falls back to a
// fixture when the scraper is disabled").
func FixtureScraper() Scraper {
	return ScraperFunc(func(_ context.Context, propertyURL string) (scrapedMedia, error) {
		return scrapedMedia{
			Address:  propertyURL,
			Price:    0,
			Bedrooms: 0,
			SqFt:     0,
			Images:   nil,
		}, nil
	})
}

func runScrape(ctx context.Context, scraper Scraper, s *state) {
	if s.err != nil {
		return
	}
	result, err := backoff.RetryWithBackoff(ctx, scrapePolicy, scrapeAttempts,
		func(_ int) (scrapedMedia, error) {
			return scraper.Scrape(ctx, s.req.PropertyURL)
		})
	if err != nil {
		s.fail(fmt.Errorf("%w: scrape: %w", ErrStageFailed, result.LastError))
		return
	}
	s.media = result.Value
	s.prop.Address = result.Value.Address
	s.prop.Price = result.Value.Price
	s.prop.Bedrooms = result.Value.Bedrooms
	s.prop.Bathrooms = result.Value.Bathrooms
	s.prop.SqFt = result.Value.SqFt
	s.prop.RawScrape = result.Value.RawScrape
	s.prop.ExternalURL = s.req.PropertyURL
}
