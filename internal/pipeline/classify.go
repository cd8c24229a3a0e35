package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// classifySemaphoreSize is the default bound on concurrent vision calls for
// images missing a tag (spec.md §4.3 "bounded by semaphore of 5"), used
// when DefaultPipeline.ClassifyConcurrency is unset.
const classifySemaphoreSize = 5

// classification is one image's resolved room assignment.
type classification struct {
	ImageURL   string
	RoomType   string
	RoomIndex  int
	Confidence float64
}

// VisionClassifier is the fast per-image vision call used for images that
// arrived without a tag from the scraper.
type VisionClassifier interface {
	ClassifyImage(ctx context.Context, imageURL string) (roomType string, confidence float64, err error)
}

// VisionClassifierFunc adapts a function to VisionClassifier.
type VisionClassifierFunc func(ctx context.Context, imageURL string) (string, float64, error)

func (f VisionClassifierFunc) ClassifyImage(ctx context.Context, imageURL string) (string, float64, error) {
	return f(ctx, imageURL)
}

// runClassify resolves each image to a room type: the tag map pass is free
// (scraper-supplied tags), missing-tag images are routed to the vision
// classifier bounded by a semaphore (spec.md §4.3).
func runClassify(ctx context.Context, classifier VisionClassifier, s *state, semSize int) {
	if s.err != nil {
		return
	}
	images := s.media.Images
	results := make([]classification, len(images))
	errs := make([]error, len(images))

	sem := make(chan struct{}, semSize)
	var wg sync.WaitGroup

	for i, img := range images {
		if img.Tag != "" {
			results[i] = classification{ImageURL: img.URL, RoomType: img.Tag, Confidence: 1.0}
			continue
		}
		wg.Add(1)
		go func(idx int, image ScrapedImage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			roomType, confidence, err := classifier.ClassifyImage(ctx, image.URL)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = classification{ImageURL: image.URL, RoomType: roomType, Confidence: confidence}
		}(i, img)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			s.fail(fmt.Errorf("%w: classify image %d: %w", ErrStageFailed, i, err))
			return
		}
	}
	s.classified = results
}
