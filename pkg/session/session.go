// Package session owns the per-session state of the sync engine: the
// local message store, the write policy engine, the viewer-local block
// list and the live subscription. The session object is the application
// root handed to consumers; no package-global singleton exists.
package session

import (
	"sync"

	"retrolog/pkg/collection"
	"retrolog/pkg/feed"
	"retrolog/pkg/identity"
	"retrolog/pkg/logger"
	"retrolog/pkg/models"
	"retrolog/pkg/policy"
)

// Options configure a session.
type Options struct {
	Policy        policy.Options
	KnownTags     []string
	QueueCapacity int
}

// Session binds the store lifecycle to one live subscription: created
// when the subscription opens, cleared when it ends.
type Session struct {
	store    *feed.Store
	engine   *policy.Engine
	provider identity.Provider
	col      collection.Collection
	queue    *feed.Queue

	knownTags []string

	mu     sync.Mutex
	unsub  func()
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Open builds the session and starts the subscription and its intake
// worker. Events flow: subscriber callback -> bounded queue -> single
// worker -> store.Apply.
func Open(col collection.Collection, provider identity.Provider, opts Options) (*Session, error) {
	store := feed.NewStore()
	blocks := policy.NewBlockList()
	s := &Session{
		store:     store,
		engine:    policy.NewEngine(col, store, blocks, opts.Policy),
		provider:  provider,
		col:       col,
		queue:     feed.NewQueue(opts.QueueCapacity),
		knownTags: opts.KnownTags,
		stop:      make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.queue.RunWorker(s.stop, store.Apply)
	}()
	unsub, err := col.Subscribe(func(ev collection.Event) {
		s.queue.TryEnqueue(ev)
	})
	if err != nil {
		close(s.stop)
		s.wg.Wait()
		s.queue.CloseAndDrain()
		return nil, err
	}
	s.unsub = unsub
	logger.Info("session_opened", "messages", store.Len())
	return s, nil
}

// Close unsubscribes, stops the intake worker and clears the store. Safe
// to call more than once and concurrently with in-flight deliveries.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsub
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	close(s.stop)
	s.wg.Wait()
	s.queue.CloseAndDrain()
	s.store.Clear()
	logger.Info("session_closed")
}

// Store exposes the local message store (read side and observers).
func (s *Session) Store() *feed.Store { return s.store }

// Engine exposes the write policy engine.
func (s *Session) Engine() *policy.Engine { return s.engine }

// Identity exposes the identity provider adapter.
func (s *Session) Identity() identity.Provider { return s.provider }

// Principal returns the acting principal, nil when anonymous.
func (s *Session) Principal() *models.Principal {
	if s.provider == nil {
		return nil
	}
	return s.provider.Current()
}

// Feed returns the block-filtered, selected and sorted view. Tag and
// query are mutually exclusive selection modes; a non-empty tag wins and
// the query is ignored, mirroring the selection behavior of the UI.
func (s *Session) Feed(order feed.SortOrder, tag, query string) []models.Message {
	msgs := feed.FilterBlocked(s.store.Snapshot(), s.engine.Blocks().Set())
	if tag != "" {
		msgs = feed.FilterByTag(msgs, tag)
	} else if query != "" {
		msgs = feed.FilterByQuery(msgs, query)
	}
	return feed.Sort(msgs, order)
}

// PopularTags ranks tags across non-blocked messages, merged with the
// configured known-tag catalog.
func (s *Session) PopularTags() []feed.TagCount {
	msgs := feed.FilterBlocked(s.store.Snapshot(), s.engine.Blocks().Set())
	return feed.PopularTags(msgs, s.knownTags)
}

// ParentInfo is the display context of a message's parent.
type ParentInfo struct {
	SequenceNumber uint64 `json:"sequence_number"`
	SenderID       string `json:"sender_id"`
}

// Message returns one message with its resolved parent context. A
// dangling parent id yields a nil ParentInfo, not an error.
func (s *Session) Message(id string) (models.Message, *ParentInfo, bool) {
	m, ok := s.store.Get(id)
	if !ok {
		return models.Message{}, nil, false
	}
	if m.ParentID == "" {
		return m, nil, true
	}
	if parent, ok := s.store.Get(m.ParentID); ok {
		return m, &ParentInfo{SequenceNumber: parent.SequenceNumber, SenderID: parent.SenderID}, true
	}
	return m, nil, true
}

// QueueStats reports intake queue health for diagnostics.
func (s *Session) QueueStats() (depth, capacity int, dropped uint64) {
	return s.queue.Len(), s.queue.Cap(), s.queue.Dropped()
}
