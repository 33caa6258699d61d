package feed

import (
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"retrolog/pkg/collection"
	"retrolog/pkg/models"
)

func addedEvent(t *testing.T, id string, m models.Message) collection.Event {
	t.Helper()
	m.ID = id
	doc, err := json.Marshal(m)
	require.NoError(t, err)
	return collection.Event{Kind: collection.EventAdded, ID: id, Doc: doc}
}

func modifiedEvent(t *testing.T, id string, m models.Message) collection.Event {
	t.Helper()
	ev := addedEvent(t, id, m)
	ev.Kind = collection.EventModified
	return ev
}

func TestApplyAssignsIncreasingSequenceNumbers(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Content: "first"}))
	s.Apply(addedEvent(t, "b", models.Message{Content: "second"}))
	s.Apply(addedEvent(t, "c", models.Message{Content: "third"}))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	for i, m := range snap {
		require.Equal(t, uint64(i+1), m.SequenceNumber)
	}
}

func TestApplyDuplicateAddedKeepsOneEntry(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Content: "v1"}))
	// replay after reconnect delivers the same document again
	s.Apply(addedEvent(t, "a", models.Message{Content: "v2"}))

	require.Equal(t, 1, s.Len())
	m, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "v2", m.Content)
	require.Equal(t, uint64(1), m.SequenceNumber)
}

func TestReAddedIDGetsFreshLargerSequence(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Content: "one"}))
	s.Apply(addedEvent(t, "b", models.Message{Content: "two"}))
	s.Apply(collection.Event{Kind: collection.EventRemoved, ID: "a"})
	require.Equal(t, 1, s.Len())

	s.Apply(addedEvent(t, "a", models.Message{Content: "reborn"}))
	m, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, uint64(3), m.SequenceNumber)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s := NewStore()
	var fired atomic.Int32
	cancel := s.Observe(func() { fired.Add(1) })
	defer cancel()

	s.Apply(collection.Event{Kind: collection.EventRemoved, ID: "ghost"})
	require.Equal(t, 0, s.Len())
	require.Equal(t, int32(0), fired.Load())
}

func TestModifiedBeforeAddedUpserts(t *testing.T) {
	s := NewStore()
	s.Apply(modifiedEvent(t, "a", models.Message{Content: "hello"}))
	m, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "hello", m.Content)
	require.Equal(t, uint64(1), m.SequenceNumber)
}

func TestApplyNormalizesRemoteTags(t *testing.T) {
	s := NewStore()
	// another writer may ship unnormalized tags; the store never serves them
	s.Apply(collection.Event{Kind: collection.EventAdded, ID: "a",
		Doc: []byte(`{"id":"a","content":"hi","tags":["  ","","#ok"]}`)})
	m, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, []string{"#ok"}, m.Tags)
}

func TestMalformedDocumentIsDropped(t *testing.T) {
	s := NewStore()
	s.Apply(collection.Event{Kind: collection.EventAdded, ID: "bad", Doc: []byte("{not json")})
	require.Equal(t, 0, s.Len())
}

func TestRemoteModifiedOverwritesOptimisticVote(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Content: "hi"}))
	s.RecordLocalVote("a", "viewer", 1)

	m, _ := s.Get("a")
	require.Equal(t, 1, m.Votes["viewer"])

	// the authoritative snapshot does not carry the viewer's vote
	s.Apply(modifiedEvent(t, "a", models.Message{Content: "hi", Votes: map[string]int{"other": -1}}))
	m, _ = s.Get("a")
	_, has := m.Votes["viewer"]
	require.False(t, has)
	require.Equal(t, -1, m.Votes["other"])
	require.Equal(t, uint64(1), m.SequenceNumber)
}

func TestRecordLocalVoteZeroRemovesEntry(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Votes: map[string]int{"v": 1}}))
	s.RecordLocalVote("a", "v", 0)
	m, _ := s.Get("a")
	require.Empty(t, m.Votes)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Tags: []string{"#x"}, Votes: map[string]int{"v": 1}}))

	snap := s.Snapshot()
	snap[0].Tags[0] = "#mutated"
	snap[0].Votes["v"] = 99

	m, _ := s.Get("a")
	require.Equal(t, "#x", m.Tags[0])
	require.Equal(t, 1, m.Votes["v"])
}

func TestObserveCancelStopsNotifications(t *testing.T) {
	s := NewStore()
	var fired atomic.Int32
	cancel := s.Observe(func() { fired.Add(1) })

	s.Apply(addedEvent(t, "a", models.Message{Content: "x"}))
	require.Equal(t, int32(1), fired.Load())

	cancel()
	cancel() // idempotent
	s.Apply(addedEvent(t, "b", models.Message{Content: "y"}))
	require.Equal(t, int32(1), fired.Load())
}

func TestClearKeepsSequenceCounter(t *testing.T) {
	s := NewStore()
	s.Apply(addedEvent(t, "a", models.Message{Content: "x"}))
	s.Apply(addedEvent(t, "b", models.Message{Content: "y"}))
	s.Clear()
	require.Equal(t, 0, s.Len())

	s.Apply(addedEvent(t, "a", models.Message{Content: "x"}))
	m, _ := s.Get("a")
	require.Equal(t, uint64(3), m.SequenceNumber)
}
