package collection

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"retrolog/pkg/logger"
)

// Key layout: documents under doc:<id>, removal tombstones under
// tomb:<id> (value = deletion time, unix nanos, big endian).
const (
	docPrefix  = "doc:"
	tombPrefix = "tomb:"
)

// Pebble is the embedded collection used in local/dev mode. It behaves
// like the remote store: writers mutate the database and every
// subscriber, including the writer's own session, observes the change as
// an event.
type Pebble struct {
	mu     sync.RWMutex
	db     *pebble.DB
	subs   subscribers
	closed bool
}

// OpenPebble opens (or creates) the embedded collection at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "err", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Pebble{db: db}, nil
}

func (p *Pebble) Create(ctx context.Context, doc []byte) (string, error) {
	id := NewID()
	full, err := injectID(doc, id)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrUnavailable
	}
	if err := p.db.Set([]byte(docPrefix+id), full, pebble.Sync); err != nil {
		return "", err
	}
	p.subs.dispatch(Event{Kind: EventAdded, ID: id, Doc: full})
	return id, nil
}

func (p *Pebble) Update(ctx context.Context, id string, patch []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrUnavailable
	}
	cur, closer, err := p.db.Get([]byte(docPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		return err
	}
	merged, merr := mergePatch(cur, patch)
	if closer != nil {
		_ = closer.Close()
	}
	if merr != nil {
		return merr
	}
	if err := p.db.Set([]byte(docPrefix+id), merged, pebble.Sync); err != nil {
		return err
	}
	p.subs.dispatch(Event{Kind: EventModified, ID: id, Doc: merged})
	return nil
}

func (p *Pebble) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrUnavailable
	}
	_, closer, err := p.db.Get([]byte(docPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			// deleting an absent id is a no-op
			return nil
		}
		return err
	}
	if closer != nil {
		_ = closer.Close()
	}
	if err := p.db.Delete([]byte(docPrefix+id), pebble.Sync); err != nil {
		return err
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UTC().UnixNano()))
	_ = p.db.Set([]byte(tombPrefix+id), ts[:], pebble.NoSync)
	p.subs.dispatch(Event{Kind: EventRemoved, ID: id})
	return nil
}

// Subscribe replays all existing documents as added events, then follows
// live changes. Replay runs under the lock so no live event can
// interleave with it.
func (p *Pebble) Subscribe(onEvent func(Event)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrUnavailable
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(docPrefix),
		UpperBound: []byte(docPrefix + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		id := string(iter.Key()[len(docPrefix):])
		doc := append([]byte(nil), iter.Value()...)
		onEvent(Event{Kind: EventAdded, ID: id, Doc: doc})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	token := p.subs.add(onEvent)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			p.subs.remove(token)
			p.mu.Unlock()
		})
	}
	return cancel, nil
}

// SweepTombstones deletes tombstones recorded before cutoff and returns
// how many were purged. Used by the retention scheduler.
func (p *Pebble) SweepTombstones(cutoff time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrUnavailable
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(tombPrefix),
		UpperBound: []byte(tombPrefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Value()) != 8 {
			continue
		}
		ts := int64(binary.BigEndian.Uint64(iter.Value()))
		if time.Unix(0, ts).Before(cutoff) {
			stale = append(stale, append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	for _, k := range stale {
		if err := p.db.Delete(k, pebble.NoSync); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.subs.m = nil
	err := p.db.Close()
	logger.Info("pebble_closed")
	return err
}
