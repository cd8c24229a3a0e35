package pipeline

import (
	"context"
	"fmt"
	"sort"
)

// multiInstanceRoomTypes cluster by visual similarity; every other room
// type is a singleton and keeps index 1 (spec.md §4.3).
var multiInstanceRoomTypes = map[string]bool{
	"bedroom":  true,
	"bathroom": true,
}

// RoomGrouper resolves a single batched vision call clustering same-type
// images into distinct room instances, for multi-instance room types.
type RoomGrouper interface {
	Group(ctx context.Context, roomType string, items []classification) (clusterIndex []int, floorPlanURL string, err error)
}

// RoomGrouperFunc adapts a function to RoomGrouper.
type RoomGrouperFunc func(ctx context.Context, roomType string, items []classification) ([]int, string, error)

func (f RoomGrouperFunc) Group(ctx context.Context, roomType string, items []classification) ([]int, string, error) {
	return f(ctx, roomType, items)
}

func runGroup(ctx context.Context, grouper RoomGrouper, s *state) {
	if s.err != nil {
		return
	}

	byType := make(map[string][]classification)
	for _, c := range s.classified {
		byType[c.RoomType] = append(byType[c.RoomType], c)
	}

	grouped := make(map[string][]classification)
	floorPlans := make(map[string]string)

	var roomTypes []string
	for roomType := range byType {
		roomTypes = append(roomTypes, roomType)
	}
	sort.Strings(roomTypes)

	for _, roomType := range roomTypes {
		items := byType[roomType]
		if !multiInstanceRoomTypes[roomType] {
			grouped[roomKey(roomType, 1)] = items
			continue
		}

		indices, floorPlanURL, err := grouper.Group(ctx, roomType, items)
		if err != nil {
			// Under-grouping preferred over over-grouping: on a failed
			// clustering call, collapse the whole type into one room
			// rather than guessing a split.
			grouped[roomKey(roomType, 1)] = items
			continue
		}
		if floorPlanURL != "" {
			floorPlans[roomKey(roomType, 1)] = floorPlanURL
		}
		for i, item := range items {
			idx := 1
			if i < len(indices) && indices[i] > 0 {
				idx = indices[i]
			}
			key := roomKey(roomType, idx)
			grouped[key] = append(grouped[key], item)
		}
	}

	s.grouped = grouped
	s.floorPlans = floorPlans
}

func roomKey(roomType string, index int) string {
	return fmt.Sprintf("%s_%d", roomType, index)
}
