package pipeline

import (
	"context"
	"sort"
	"sync"
)

// estimateSemaphoreSize is the default bound on concurrent per-room vision
// calls (spec.md §4.3 "semaphore of 3"), used when
// DefaultPipeline.EstimateConcurrency is unset.
const estimateSemaphoreSize = 3

// fallbackConfidence is assigned when a room's estimate call fails and the
// conservative fixed table is used instead (spec.md §4.3).
const fallbackConfidence = 0.3

// roomEstimate is one room's condition assessment and cost range.
type roomEstimate struct {
	RoomKey    string
	RoomType   string
	Condition  string
	Items      []string
	CostMin    float64
	CostMax    float64
	Confidence float64
}

// RoomEstimator is the per-room vision call estimating renovation scope and
// cost for one clustered room.
type RoomEstimator interface {
	Estimate(ctx context.Context, roomType string, images []classification) (roomEstimate, error)
}

// RoomEstimatorFunc adapts a function to RoomEstimator.
type RoomEstimatorFunc func(ctx context.Context, roomType string, images []classification) (roomEstimate, error)

func (f RoomEstimatorFunc) Estimate(ctx context.Context, roomType string, images []classification) (roomEstimate, error) {
	return f(ctx, roomType, images)
}

// fallbackEstimate returns the conservative fixed table used when a room's
// estimate call fails (spec.md §4.3).
func fallbackEstimate(roomKey, roomType string) roomEstimate {
	return roomEstimate{
		RoomKey:    roomKey,
		RoomType:   roomType,
		Condition:  "unknown",
		CostMin:    1000,
		CostMax:    3000,
		Confidence: fallbackConfidence,
	}
}

func runEstimate(ctx context.Context, estimator RoomEstimator, s *state, semSize int) {
	if s.err != nil {
		return
	}

	var keys []string
	for key := range s.grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]roomEstimate, len(keys))
	sem := make(chan struct{}, semSize)
	var wg sync.WaitGroup

	for i, key := range keys {
		wg.Add(1)
		go func(idx int, roomKey string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			items := s.grouped[roomKey]
			roomType := ""
			if len(items) > 0 {
				roomType = items[0].RoomType
			}

			est, err := estimator.Estimate(ctx, roomType, items)
			if err != nil {
				est = fallbackEstimate(roomKey, roomType)
			} else {
				est.RoomKey = roomKey
				est.RoomType = roomType
			}
			results[idx] = est
		}(i, key)
	}
	wg.Wait()

	s.estimates = results
}
