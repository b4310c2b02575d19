package chat

import "sort"

// mergeTimeline splices a backfill set into whatever the realtime channel has
// already accumulated. Entries are keyed by event id with the current
// (live) entries winning over backfill, so a message that arrived over the
// channel before the history response resolved is never lost or regressed.
// The result is a fresh slice ordered by timestamp ascending.
func mergeTimeline(current []Message, backfill []Message) []Message {
	byID := make(map[string]Message, len(current)+len(backfill))
	for _, m := range backfill {
		byID[m.EventID] = m
	}
	for _, m := range current {
		byID[m.EventID] = m
	}
	merged := make([]Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].EventID < merged[j].EventID
		}
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// insertMessage adds one live message to an already-sorted timeline,
// deduplicating by event id. It never mutates the input slice; the returned
// slice is a new one whenever the message was inserted. The second return
// reports whether the timeline changed.
func insertMessage(timeline []Message, m Message) ([]Message, bool) {
	for _, existing := range timeline {
		if existing.EventID == m.EventID {
			return timeline, false
		}
	}
	// insert after every entry with a timestamp <= ours so arrival order is
	// kept among equal timestamps.
	idx := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].Timestamp.After(m.Timestamp)
	})
	out := make([]Message, 0, len(timeline)+1)
	out = append(out, timeline[:idx]...)
	out = append(out, m)
	out = append(out, timeline[idx:]...)
	return out, true
}
