package collection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPebble(t *testing.T) *Pebble {
	t.Helper()
	p, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// recorder collects dispatched events; dispatch is synchronous so no
// locking is needed in these single-goroutine tests.
type recorder struct {
	events []Event
}

func (r *recorder) on(ev Event) {
	cp := ev
	cp.Doc = append([]byte(nil), ev.Doc...)
	r.events = append(r.events, cp)
}

func TestCreateInjectsIDAndDispatches(t *testing.T) {
	p := openTestPebble(t)
	var rec recorder
	cancel, err := p.Subscribe(rec.on)
	require.NoError(t, err)
	defer cancel()

	id, err := p.Create(context.Background(), []byte(`{"content":"hello"}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventAdded, rec.events[0].Kind)
	assert.Equal(t, id, rec.events[0].ID)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.events[0].Doc, &doc))
	assert.Equal(t, id, doc["id"])
	assert.Equal(t, "hello", doc["content"])
}

func TestSubscribeReplaysExistingDocuments(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	id1, err := p.Create(ctx, []byte(`{"content":"one"}`))
	require.NoError(t, err)
	id2, err := p.Create(ctx, []byte(`{"content":"two"}`))
	require.NoError(t, err)

	var rec recorder
	cancel, err := p.Subscribe(rec.on)
	require.NoError(t, err)
	defer cancel()

	require.Len(t, rec.events, 2)
	seen := map[string]bool{}
	for _, ev := range rec.events {
		assert.Equal(t, EventAdded, ev.Kind)
		seen[ev.ID] = true
	}
	assert.True(t, seen[id1])
	assert.True(t, seen[id2])
}

func TestUpdateMergesTopLevelFields(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	id, err := p.Create(ctx, []byte(`{"content":"keep","votes":{}}`))
	require.NoError(t, err)

	var rec recorder
	cancel, err := p.Subscribe(rec.on)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, p.Update(ctx, id, []byte(`{"votes":{"alice":1}}`)))

	require.Len(t, rec.events, 2) // replay + modified
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventModified, last.Kind)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(last.Doc, &doc))
	assert.Equal(t, "keep", doc["content"])
	assert.Equal(t, map[string]any{"alice": float64(1)}, doc["votes"])
}

func TestUpdateAbsentIsNoop(t *testing.T) {
	p := openTestPebble(t)
	var rec recorder
	cancel, err := p.Subscribe(rec.on)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, p.Update(context.Background(), "ghost", []byte(`{"votes":{}}`)))
	assert.Empty(t, rec.events)
}

func TestDeleteDispatchesRemovedOnce(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	id, err := p.Create(ctx, []byte(`{"content":"bye"}`))
	require.NoError(t, err)

	var rec recorder
	cancel, err := p.Subscribe(rec.on)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, p.Delete(ctx, id))
	// a second delete of the same id is a no-op
	require.NoError(t, p.Delete(ctx, id))

	require.Len(t, rec.events, 2) // replay + removed
	assert.Equal(t, EventRemoved, rec.events[1].Kind)
	assert.Equal(t, id, rec.events[1].ID)
	assert.Nil(t, rec.events[1].Doc)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p := openTestPebble(t)
	var rec recorder
	cancel, err := p.Subscribe(rec.on)
	require.NoError(t, err)

	cancel()
	cancel() // idempotent

	_, err = p.Create(context.Background(), []byte(`{"content":"unseen"}`))
	require.NoError(t, err)
	assert.Empty(t, rec.events)
}

func TestSweepTombstones(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	id, err := p.Create(ctx, []byte(`{"content":"x"}`))
	require.NoError(t, err)
	require.NoError(t, p.Delete(ctx, id))

	// tombstone is younger than a cutoff in the past
	n, err := p.SweepTombstones(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = p.SweepTombstones(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// already purged
	n, err = p.SweepTombstones(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClosedCollectionIsUnavailable(t *testing.T) {
	p, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close()) // idempotent

	_, err = p.Create(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = p.Subscribe(func(Event) {})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewIDIsSortable(t *testing.T) {
	a := NewID()
	time.Sleep(2 * time.Millisecond)
	b := NewID()
	assert.Less(t, a, b)
}
