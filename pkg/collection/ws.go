package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"retrolog/pkg/logger"
)

// opFrame is the client-to-hub write format.
type opFrame struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Doc   json.RawMessage `json:"doc,omitempty"`
	Patch json.RawMessage `json:"patch,omitempty"`
}

// Websocket connects to a remote feed hub. The hub replays the current
// document set as added events on every (re)connect; replays are safe
// because the local store deduplicates by id. The hub echoes accepted
// writes back to all clients including the sender, so writes are not
// dispatched locally.
type Websocket struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   subscribers
	closed bool

	writeMu sync.Mutex
	done    chan struct{}
}

// DialWebsocket connects to the hub at url and starts the read loop.
func DialWebsocket(url string) (*Websocket, error) {
	w := &Websocket{url: url, done: make(chan struct{})}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, url, err)
	}
	w.conn = conn
	go w.readLoop(conn)
	logger.Info("ws_connected", "url", url)
	return w, nil
}

func (w *Websocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			closed := w.closed
			if w.conn == conn {
				w.conn = nil
			}
			w.mu.Unlock()
			if closed {
				return
			}
			logger.Warn("ws_read_failed", "err", err)
			w.reconnect()
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("ws_bad_frame", "err", err)
			continue
		}
		// dispatch under the lock so a returned unsubscribe implies no
		// in-flight callback
		w.mu.Lock()
		if !w.closed {
			w.subs.dispatch(ev)
		}
		w.mu.Unlock()
	}
}

// reconnect retries with exponential backoff until it succeeds or the
// collection is closed. The local store keeps its last-known-good state
// during the outage.
func (w *Websocket) reconnect() {
	backoff := time.Second
	for {
		select {
		case <-w.done:
			return
		case <-time.After(backoff):
		}
		conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
		if err != nil {
			logger.Warn("ws_reconnect_failed", "url", w.url, "backoff", backoff.String(), "err", err)
			if backoff *= 2; backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			_ = conn.Close()
			return
		}
		w.conn = conn
		w.mu.Unlock()
		logger.Info("ws_reconnected", "url", w.url)
		go w.readLoop(conn)
		return
	}
}

func (w *Websocket) write(ctx context.Context, f opFrame) error {
	w.mu.Lock()
	conn := w.conn
	closed := w.closed
	w.mu.Unlock()
	if closed || conn == nil {
		return ErrUnavailable
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (w *Websocket) Create(ctx context.Context, doc []byte) (string, error) {
	id := NewID()
	full, err := injectID(doc, id)
	if err != nil {
		return "", err
	}
	if err := w.write(ctx, opFrame{Op: "create", ID: id, Doc: full}); err != nil {
		return "", err
	}
	return id, nil
}

func (w *Websocket) Update(ctx context.Context, id string, patch []byte) error {
	return w.write(ctx, opFrame{Op: "update", ID: id, Patch: patch})
}

func (w *Websocket) Delete(ctx context.Context, id string) error {
	return w.write(ctx, opFrame{Op: "delete", ID: id})
}

func (w *Websocket) Subscribe(onEvent func(Event)) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrUnavailable
	}
	token := w.subs.add(onEvent)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			w.subs.remove(token)
			w.mu.Unlock()
		})
	}
	return cancel, nil
}

func (w *Websocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.subs.m = nil
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	close(w.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}
