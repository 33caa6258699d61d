// Package collection abstracts the remote multi-writer document store the
// feed engine synchronizes against. Implementations must deliver every
// change as an Event; they give no ordering or exactly-once guarantee —
// deduplication is the local store's job.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"retrolog/pkg/config"
)

// EventKind classifies a change notification.
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
)

// Event is a single change notification. Doc carries the full document
// snapshot for added/modified and is nil for removed.
type Event struct {
	Kind EventKind       `json:"kind"`
	ID   string          `json:"id"`
	Doc  json.RawMessage `json:"doc,omitempty"`
}

// ErrUnavailable wraps transport failures so callers can classify them.
var ErrUnavailable = errors.New("remote collection unavailable")

// Collection is a subscribable set of documents keyed by opaque id.
type Collection interface {
	// Create stores doc under a newly assigned id and returns it. The
	// stored document has the id injected into its "id" field.
	Create(ctx context.Context, doc []byte) (string, error)
	// Update merges the top-level fields of patch into the stored
	// document (last-write-wins per field).
	Update(ctx context.Context, id string, patch []byte) error
	// Delete removes the document; deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
	// Subscribe registers onEvent for all changes. Pre-existing
	// documents arrive as an initial burst of added events in arbitrary
	// order. The returned cancel func is idempotent and guarantees no
	// further invocations once it returns.
	Subscribe(onEvent func(Event)) (func(), error)
	// Close releases the underlying connection or database.
	Close() error
}

// Open builds the collection selected by cfg.Mode.
func Open(cfg config.RemoteConfig) (Collection, error) {
	switch cfg.Mode {
	case "embedded":
		return OpenPebble(cfg.DBPath)
	case "websocket":
		return DialWebsocket(cfg.URL)
	case "redis":
		return OpenRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown remote mode %q", cfg.Mode)
	}
}

// NewID returns a new lexicographically sortable document id.
func NewID() string {
	return ulid.Make().String()
}

// injectID sets the "id" field of a JSON document.
func injectID(doc []byte, id string) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	m["id"] = id
	return json.Marshal(m)
}

// mergePatch merges the top-level fields of patch into doc and returns
// the merged document.
func mergePatch(doc, patch []byte) ([]byte, error) {
	var base map[string]any
	if err := json.Unmarshal(doc, &base); err != nil {
		return nil, fmt.Errorf("invalid stored document: %w", err)
	}
	var p map[string]any
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	for k, v := range p {
		base[k] = v
	}
	return json.Marshal(base)
}

// subscribers is the shared fanout list used by every implementation.
// Dispatch runs under the read lock and cancellation takes the write
// lock, so a returned cancel func implies no in-flight callbacks remain.
type subscribers struct {
	next int
	m    map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) int {
	if s.m == nil {
		s.m = map[int]func(Event){}
	}
	s.next++
	s.m[s.next] = fn
	return s.next
}

func (s *subscribers) remove(id int) {
	delete(s.m, id)
}

func (s *subscribers) dispatch(ev Event) {
	for _, fn := range s.m {
		fn(ev)
	}
}
