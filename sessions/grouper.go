package sessions

import (
	"slices"

	"cloudboard/api/models"
)

// Group partitions events into buckets keyed by session id. Events must
// already be scoped to one domain and window. Events without a session id
// are skipped and counted; nothing else is dropped or deduplicated, and the
// order inside a bucket is unspecified.
func Group(events []models.RawEvent) (buckets map[string][]models.RawEvent, skipped int) {
	buckets = make(map[string][]models.RawEvent)
	for _, event := range events {
		if event.SessionID == "" {
			skipped++
			continue
		}
		buckets[event.SessionID] = append(buckets[event.SessionID], event)
	}
	return buckets, skipped
}

// SortByTime orders a bucket by ascending timestamp in place. Ties keep
// their original relative order.
func SortByTime(events []models.RawEvent) {
	slices.SortStableFunc(events, func(a, b models.RawEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
