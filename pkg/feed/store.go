// Package feed holds the local message store and its derived views: the
// ordered, deduplicated projection of the remote collection that the rest
// of the process reads.
package feed

import (
	"sync"

	"retrolog/pkg/collection"
	"retrolog/pkg/logger"
	"retrolog/pkg/models"
	"retrolog/pkg/telemetry"
)

// Store is the local message store. All mutations are serialized by the
// store lock; readers never observe a half-applied event. Sequence
// numbers are assigned at first observation, strictly increase and are
// never reused — a removed then re-added id gets a fresh, larger number.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*models.Message
	order []*models.Message // ascending sequence number
	seq   uint64

	obsMu   sync.Mutex
	obs     map[int]func()
	obsNext int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: map[string]*models.Message{}}
}

// Apply maps one remote change event into the store. Added and modified
// both upsert: a duplicate added (replay after reconnect) merges into the
// existing entity and never allocates a second sequence number. Removing
// an absent id is a no-op. Observers are notified after every applied
// mutation.
func (s *Store) Apply(ev collection.Event) {
	switch ev.Kind {
	case collection.EventAdded, collection.EventModified:
		m, err := models.DecodeMessage(ev.Doc)
		if err != nil {
			logger.Warn("event_decode_failed", "kind", string(ev.Kind), "id", ev.ID, "err", err)
			telemetry.EventsDropped.Inc()
			return
		}
		m.ID = ev.ID
		s.upsert(&m)
	case collection.EventRemoved:
		if !s.remove(ev.ID) {
			return
		}
	default:
		logger.Warn("event_unknown_kind", "kind", string(ev.Kind), "id", ev.ID)
		return
	}
	telemetry.EventsApplied.WithLabelValues(string(ev.Kind)).Inc()
	s.notify()
}

func (s *Store) upsert(m *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.byID[m.ID]; ok {
		// merge in place, preserving the first-observation sequence
		// number; the remote snapshot wins over any optimistic local
		// state, including votes
		m.SequenceNumber = cur.SequenceNumber
		*cur = *m
		telemetry.EventsDeduped.Inc()
		return
	}
	s.seq++
	m.SequenceNumber = s.seq
	s.byID[m.ID] = m
	s.order = append(s.order, m)
	telemetry.StoreSize.Set(float64(len(s.order)))
}

func (s *Store) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, m := range s.order {
		if m.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	telemetry.StoreSize.Set(float64(len(s.order)))
	return true
}

// RecordLocalVote optimistically mutates a message's vote entry before
// remote confirmation so the caller sees immediate feedback. weight 0
// removes the voter's entry. The authoritative value arrives later as a
// modified event and overwrites whatever is recorded here.
func (s *Store) RecordLocalVote(messageID, voterID string, weight int) {
	s.mu.Lock()
	m, ok := s.byID[messageID]
	if ok {
		if m.Votes == nil {
			m.Votes = map[string]int{}
		}
		if weight == 0 {
			delete(m.Votes, voterID)
		} else {
			m.Votes[voterID] = weight
		}
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
}

// Snapshot returns the messages in observation order (ascending sequence
// number). Entries are deep copies; callers may keep them across store
// mutations.
func (s *Store) Snapshot() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.order))
	for i, m := range s.order {
		out[i] = m.Clone()
	}
	return out
}

// Get returns a copy of one message by remote id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return models.Message{}, false
	}
	return m.Clone(), true
}

// Len returns the number of live messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Observe registers fn to run after every applied mutation. The returned
// cancel func is idempotent. Observers run outside the store lock and may
// read snapshots, but must not block.
func (s *Store) Observe(fn func()) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if s.obs == nil {
		s.obs = map[int]func(){}
	}
	s.obsNext++
	token := s.obsNext
	s.obs[token] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.obs, token)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.obsMu.Lock()
	fns := make([]func(), 0, len(s.obs))
	for _, fn := range s.obs {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Clear drops all messages. The sequence counter is deliberately not
// reset so numbers stay unique for the process lifetime.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byID = map[string]*models.Message{}
	s.order = nil
	s.mu.Unlock()
	telemetry.StoreSize.Set(0)
}
