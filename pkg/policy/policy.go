// Package policy gates outbound mutations behind identity, ownership and
// rate-limit checks before forwarding them to the remote collection.
// The cooldown is client-local by design: the remote store's own access
// rules are the real enforcement point.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"retrolog/pkg/collection"
	"retrolog/pkg/feed"
	"retrolog/pkg/logger"
	"retrolog/pkg/models"
	"retrolog/pkg/tags"
	"retrolog/pkg/telemetry"
)

// Options tune the engine; zero values fall back to defaults.
type Options struct {
	Cooldown      time.Duration
	MaxPayload    uint64
	MaxContentLen int
	MaxTitleLen   int
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Engine is the write policy engine. Writes are fire-and-forget relative
// to the store: the engine returns once the remote accepts, and the
// change loops back as an event.
type Engine struct {
	col    collection.Collection
	store  *feed.Store
	blocks *BlockList

	limits     limiterPool
	maxPayload uint64
	maxContent int
	maxTitle   int
	now        func() time.Time
}

// NewEngine builds an engine writing through col with optimistic updates
// applied to store.
func NewEngine(col collection.Collection, store *feed.Store, blocks *BlockList, opts Options) *Engine {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Second
	}
	if opts.MaxPayload == 0 {
		opts.MaxPayload = 256 * 1024
	}
	if opts.MaxContentLen <= 0 {
		opts.MaxContentLen = 4000
	}
	if opts.MaxTitleLen <= 0 {
		opts.MaxTitleLen = 200
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if blocks == nil {
		blocks = NewBlockList()
	}
	return &Engine{
		col:        col,
		store:      store,
		blocks:     blocks,
		limits:     limiterPool{cooldown: opts.Cooldown},
		maxPayload: opts.MaxPayload,
		maxContent: opts.MaxContentLen,
		maxTitle:   opts.MaxTitleLen,
		now:        opts.Now,
	}
}

// Blocks exposes the viewer-local block list.
func (e *Engine) Blocks() *BlockList { return e.blocks }

// SendRequest describes one outbound message create.
type SendRequest struct {
	Title    string   `json:"title,omitempty"`
	Content  string   `json:"content"`
	ParentID string   `json:"parent_id,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Media    []string `json:"media,omitempty"`
}

// Send validates and forwards a create to the remote collection. The
// cooldown window opens only after the remote accepts; the new message
// reaches the store via the looped-back added event.
func (e *Engine) Send(ctx context.Context, p *models.Principal, req SendRequest) (string, error) {
	if p == nil {
		telemetry.SendsRejected.WithLabelValues("unauthenticated").Inc()
		return "", ErrUnauthenticated
	}
	if err := e.validateSend(req); err != nil {
		telemetry.SendsRejected.WithLabelValues("invalid").Inc()
		return "", err
	}
	now := e.now()
	if d, ok := e.limits.begin(p.ID, now); !ok {
		telemetry.SendsRejected.WithLabelValues("rate_limited").Inc()
		return "", &RateLimitedError{Remaining: d}
	}
	m := models.Message{
		SenderID:        p.ID,
		SenderName:      p.DisplayName,
		SenderAvatarRef: p.AvatarRef,
		Title:           req.Title,
		Content:         req.Content,
		Tags:            tags.Merge(req.Tags, req.Content),
		Media:           req.Media,
		ParentID:        req.ParentID,
		TS:              now.UTC().UnixNano(),
		Votes:           map[string]int{},
	}
	doc, err := json.Marshal(m)
	if err != nil {
		e.limits.release(p.ID)
		return "", err
	}
	if uint64(len(doc)) > e.maxPayload {
		e.limits.release(p.ID)
		telemetry.SendsRejected.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("%w: payload too large", ErrInvalid)
	}
	id, err := e.col.Create(ctx, doc)
	if err != nil {
		e.limits.release(p.ID)
		telemetry.SendsRejected.WithLabelValues("remote").Inc()
		return "", wrapRemote(err)
	}
	// acceptance, not propagation, starts the window
	e.limits.commit(p.ID, e.now())
	telemetry.SendsAccepted.Inc()
	logger.Info("message_sent", "id", id, "sender", p.ID, "parent", req.ParentID)
	return id, nil
}

func (e *Engine) validateSend(req SendRequest) error {
	if len(req.Content) == 0 {
		return fmt.Errorf("%w: content required", ErrInvalid)
	}
	if utf8.RuneCountInString(req.Content) > e.maxContent {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalid, e.maxContent)
	}
	if utf8.RuneCountInString(req.Title) > e.maxTitle {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalid, e.maxTitle)
	}
	return nil
}

// Remaining reports how long the principal must wait before the next
// accepted send.
func (e *Engine) Remaining(p *models.Principal) time.Duration {
	if p == nil {
		return 0
	}
	return e.limits.remaining(p.ID, e.now())
}

// ToggleVote applies idempotent toggle semantics: no entry sets weight,
// an equal entry removes it, an opposite entry is replaced. The local
// store is updated optimistically; the remote modified event remains the
// source of truth and overwrites the optimistic value when it arrives.
func (e *Engine) ToggleVote(ctx context.Context, p *models.Principal, messageID string, weight int) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if weight > 0 {
		weight = 1
	} else if weight < 0 {
		weight = -1
	} else {
		return fmt.Errorf("%w: vote weight must be non-zero", ErrInvalid)
	}
	m, ok := e.store.Get(messageID)
	if !ok {
		// not observed yet; nothing to toggle against
		return nil
	}
	votes := m.Votes
	if votes == nil {
		votes = map[string]int{}
	}
	next := weight
	if cur, has := votes[p.ID]; has && cur == weight {
		next = 0
	}
	if next == 0 {
		delete(votes, p.ID)
	} else {
		votes[p.ID] = next
	}
	e.store.RecordLocalVote(messageID, p.ID, next)
	patch, err := json.Marshal(map[string]any{"votes": votes})
	if err != nil {
		return err
	}
	return wrapRemote(e.col.Update(ctx, messageID, patch))
}

// Delete removes a message. Only the sender or an administrator may
// delete; children referencing the message are left in place and degrade
// their parent context to absent.
func (e *Engine) Delete(ctx context.Context, p *models.Principal, messageID string) error {
	if p == nil {
		return ErrUnauthenticated
	}
	m, ok := e.store.Get(messageID)
	if !ok {
		// absent locally; deleting an unknown id is a no-op
		return nil
	}
	if m.SenderID != p.ID && !p.Admin {
		telemetry.SendsRejected.WithLabelValues("forbidden").Inc()
		return ErrForbidden
	}
	if err := wrapRemote(e.col.Delete(ctx, messageID)); err != nil {
		return err
	}
	logger.Info("message_deleted", "id", messageID, "actor", p.ID, "admin", p.Admin)
	return nil
}

// BlockSender hides a sender for this viewer only; the remote store is
// not touched.
func (e *Engine) BlockSender(senderID string) {
	e.blocks.Add(senderID)
	logger.Info("sender_blocked", "sender", senderID)
}

// UnblockSender reverses BlockSender.
func (e *Engine) UnblockSender(senderID string) {
	e.blocks.Remove(senderID)
}

// BlockSenderGlobal is the administrator escalation: in addition to the
// local block it deletes every message by the sender from the remote
// store.
func (e *Engine) BlockSenderGlobal(ctx context.Context, p *models.Principal, senderID string) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.Admin {
		return ErrForbidden
	}
	e.blocks.Add(senderID)
	var firstErr error
	for _, m := range e.store.Snapshot() {
		if m.SenderID != senderID {
			continue
		}
		if err := wrapRemote(e.col.Delete(ctx, m.ID)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	logger.Info("sender_blocked_global", "sender", senderID, "actor", p.ID)
	return firstErr
}
