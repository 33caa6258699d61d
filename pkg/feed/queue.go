package feed

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"retrolog/pkg/collection"
	"retrolog/pkg/telemetry"
)

// The intake queue sits between the change stream subscriber and the
// store. The subscriber callback must never block the transport, so
// enqueue is non-blocking and drops on overflow; a single worker drains
// the queue, which serializes event application even when the transport
// delivers concurrently.

// Item wraps a queued event and owns a pooled ByteBuffer if one was used
// for the document payload. The worker calls Done() exactly once after
// processing.
type Item struct {
	Event collection.Event

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		it.Event.Doc = nil
		itemPool.Put(it)
	})
}

var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer is the largest payload buffer returned to the pool;
// bigger ones are left for the GC.
const maxPooledBuffer = 256 * 1024

// Queue is a bounded single-consumer event queue. It is safe for
// concurrent producers.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

// NewQueue creates a bounded queue; capacity <= 0 falls back to 1024.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// TryEnqueue copies the event payload into a pooled buffer and enqueues
// it. On overflow the event is dropped and counted; the subscriber must
// never block the transport.
func (q *Queue) TryEnqueue(ev collection.Event) bool {
	it := itemPool.Get().(*Item)
	it.once = sync.Once{}
	it.Event = collection.Event{Kind: ev.Kind, ID: ev.ID}
	if len(ev.Doc) > 0 {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], ev.Doc...)
		it.buf = bb
		it.Event.Doc = bb.B[:len(ev.Doc)]
	}
	select {
	case q.ch <- it:
		telemetry.QueueDepth.Set(float64(len(q.ch)))
		return true
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		telemetry.EventsDropped.Inc()
		return false
	}
}

// RunWorker drains the queue, invoking handler for each event, until stop
// is closed or the queue is closed. Item resources are released even if
// handler panics into a recover upstream.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(collection.Event)) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				handler(it.Event)
			}(it)
			telemetry.QueueDepth.Set(float64(len(q.ch)))
		case <-stop:
			return
		}
	}
}

// CloseAndDrain closes the queue and releases any remaining items.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
	telemetry.QueueDepth.Set(0)
}

// Len returns the current backlog.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many events were dropped due to a full queue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
