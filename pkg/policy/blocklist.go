package policy

import "sync"

// BlockList is the viewer-local set of hidden sender ids. It is session
// state: never written to the remote store and never persisted across
// restarts.
type BlockList struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewBlockList() *BlockList {
	return &BlockList{ids: map[string]struct{}{}}
}

func (b *BlockList) Add(senderID string) {
	b.mu.Lock()
	b.ids[senderID] = struct{}{}
	b.mu.Unlock()
}

func (b *BlockList) Remove(senderID string) {
	b.mu.Lock()
	delete(b.ids, senderID)
	b.mu.Unlock()
}

func (b *BlockList) Contains(senderID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[senderID]
	return ok
}

// Set returns a copy of the block set for filtering.
func (b *BlockList) Set() map[string]struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]struct{}, len(b.ids))
	for id := range b.ids {
		out[id] = struct{}{}
	}
	return out
}
