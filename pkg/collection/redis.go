package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"retrolog/pkg/config"
	"retrolog/pkg/logger"
)

// Redis stores documents as JSON strings under <keyspace>:doc:<id>, keeps
// the id set in <keyspace>:docs and broadcasts change events on the
// <keyspace>:events channel. Pub/sub delivers a writer's own events back
// to it, so writes are not dispatched locally; the loopback event is the
// confirmation, mirroring the remote store's behavior.
type Redis struct {
	rdb      *redis.Client
	keyspace string

	mu     sync.Mutex
	subs   subscribers
	closed bool

	ps *redis.PubSub
}

// OpenRedis connects to redis and starts following the change channel.
func OpenRedis(cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
	}
	r := &Redis{rdb: rdb, keyspace: cfg.Keyspace}
	r.ps = rdb.Subscribe(context.Background(), r.eventsChannel())
	go r.followEvents()
	logger.Info("redis_connected", "addr", cfg.Addr, "keyspace", cfg.Keyspace)
	return r, nil
}

func (r *Redis) docKey(id string) string { return r.keyspace + ":doc:" + id }
func (r *Redis) docsKey() string         { return r.keyspace + ":docs" }
func (r *Redis) eventsChannel() string   { return r.keyspace + ":events" }

func (r *Redis) followEvents() {
	// Channel() is closed by ps.Close() during Close.
	for msg := range r.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Warn("redis_bad_event", "err", err)
			continue
		}
		r.mu.Lock()
		if !r.closed {
			r.subs.dispatch(ev)
		}
		r.mu.Unlock()
	}
}

func (r *Redis) publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.eventsChannel(), b).Err(); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Create(ctx context.Context, doc []byte) (string, error) {
	id := NewID()
	full, err := injectID(doc, id)
	if err != nil {
		return "", err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.docKey(id), full, 0)
	pipe.SAdd(ctx, r.docsKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: create: %v", ErrUnavailable, err)
	}
	if err := r.publish(ctx, Event{Kind: EventAdded, ID: id, Doc: full}); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) Update(ctx context.Context, id string, patch []byte) error {
	cur, err := r.rdb.Get(ctx, r.docKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}
	merged, err := mergePatch(cur, patch)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.docKey(id), merged, 0).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrUnavailable, err)
	}
	return r.publish(ctx, Event{Kind: EventModified, ID: id, Doc: merged})
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.Del(ctx, r.docKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: del: %v", ErrUnavailable, err)
	}
	_ = r.rdb.SRem(ctx, r.docsKey(), id).Err()
	if n == 0 {
		// deleting an absent id is a no-op
		return nil
	}
	return r.publish(ctx, Event{Kind: EventRemoved, ID: id})
}

// Subscribe replays the current document set as added events in arbitrary
// order, then follows the change channel.
func (r *Redis) Subscribe(onEvent func(Event)) (func(), error) {
	ctx, cancelCtx := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCtx()
	ids, err := r.rdb.SMembers(ctx, r.docsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers: %v", ErrUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrUnavailable
	}
	for _, id := range ids {
		doc, err := r.rdb.Get(ctx, r.docKey(id)).Bytes()
		if err != nil {
			// raced with a delete; the removed event will follow
			continue
		}
		onEvent(Event{Kind: EventAdded, ID: id, Doc: doc})
	}
	token := r.subs.add(onEvent)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			r.subs.remove(token)
			r.mu.Unlock()
		})
	}
	return cancel, nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.subs.m = nil
	r.mu.Unlock()
	_ = r.ps.Close()
	return r.rdb.Close()
}
