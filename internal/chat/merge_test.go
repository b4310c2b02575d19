package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeMessage(eventID string, ts time.Time) Message {
	return Message{
		EventID:     eventID,
		RoomID:      "room-1",
		UserID:      "user-1",
		DisplayName: "alice",
		Text:        "message " + eventID,
		Timestamp:   ts,
	}
}

func timelineIDs(timeline []Message) []string {
	ids := make([]string, 0, len(timeline))
	for _, m := range timeline {
		ids = append(ids, m.EventID)
	}
	return ids
}

func TestMergeTimelineDeduplicatesByEventID(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := []Message{makeMessage("2", t0.Add(time.Second))}
	backfill := []Message{
		makeMessage("1", t0),
		makeMessage("2", t0.Add(time.Second)),
	}

	merged := mergeTimeline(current, backfill)

	require.Equal(t, []string{"1", "2"}, timelineIDs(merged))
}

func TestMergeTimelineOrdersByTimestamp(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backfill := []Message{
		makeMessage("c", t0.Add(2*time.Second)),
		makeMessage("a", t0),
		makeMessage("b", t0.Add(time.Second)),
	}

	merged := mergeTimeline(nil, backfill)

	require.Equal(t, []string{"a", "b", "c"}, timelineIDs(merged))
}

func TestMergeTimelineKeepsLiveMessagesOverBackfill(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := makeMessage("1", t0)
	live.Text = "live copy"
	stale := makeMessage("1", t0)
	stale.Text = "backfill copy"

	merged := mergeTimeline([]Message{live}, []Message{stale})

	require.Len(t, merged, 1)
	require.Equal(t, "live copy", merged[0].Text)
}

func TestMergeTimelineNeverDropsLiveMessages(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := []Message{makeMessage("live", t0.Add(5 * time.Second))}
	backfill := []Message{
		makeMessage("old-1", t0),
		makeMessage("old-2", t0.Add(time.Second)),
	}

	merged := mergeTimeline(current, backfill)

	require.Equal(t, []string{"old-1", "old-2", "live"}, timelineIDs(merged))
}

func TestInsertMessageDeduplicates(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeline := []Message{makeMessage("1", t0)}

	out, changed := insertMessage(timeline, makeMessage("1", t0))

	require.False(t, changed)
	require.Equal(t, []string{"1"}, timelineIDs(out))
}

func TestInsertMessageKeepsTimestampOrder(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeline := []Message{
		makeMessage("1", t0),
		makeMessage("3", t0.Add(2*time.Second)),
	}

	out, changed := insertMessage(timeline, makeMessage("2", t0.Add(time.Second)))

	require.True(t, changed)
	require.Equal(t, []string{"1", "2", "3"}, timelineIDs(out))
}

func TestInsertMessageDoesNotMutateInput(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeline := []Message{
		makeMessage("1", t0),
		makeMessage("3", t0.Add(2*time.Second)),
	}

	_, changed := insertMessage(timeline, makeMessage("2", t0.Add(time.Second)))

	require.True(t, changed)
	require.Equal(t, []string{"1", "3"}, timelineIDs(timeline))
}
