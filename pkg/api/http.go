// Package api is the local HTTP surface consumed by the presentation
// layer. It is pull-based: reads return snapshots and derived views,
// writes go through the policy engine; the engine never calls back into
// a client.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"retrolog/pkg/feed"
	"retrolog/pkg/logger"
	"retrolog/pkg/models"
	"retrolog/pkg/policy"
	"retrolog/pkg/session"
)

// Handler returns the router serving the engine's read/write contract.
func Handler(s *session.Session) http.Handler {
	r := mux.NewRouter()
	h := &handlers{s: s}

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/feed", h.getFeed).Methods(http.MethodGet)
	v1.HandleFunc("/tags/popular", h.getPopularTags).Methods(http.MethodGet)
	v1.HandleFunc("/messages", h.postMessage).Methods(http.MethodPost)
	v1.HandleFunc("/messages/{id}", h.getMessage).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}", h.deleteMessage).Methods(http.MethodDelete)
	v1.HandleFunc("/messages/{id}/votes", h.postVote).Methods(http.MethodPost)
	v1.HandleFunc("/blocks/{sender}", h.postBlock).Methods(http.MethodPost)
	v1.HandleFunc("/blocks/{sender}", h.deleteBlock).Methods(http.MethodDelete)
	v1.HandleFunc("/session", h.getSession).Methods(http.MethodGet)
	v1.HandleFunc("/session/sign-in", h.signIn).Methods(http.MethodPost)
	v1.HandleFunc("/session/sign-out", h.signOut).Methods(http.MethodPost)
	v1.HandleFunc("/session/admin", h.escalateAdmin).Methods(http.MethodPost)

	return r
}

type handlers struct {
	s *session.Session
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := policy.HTTPStatus(err)
	body := map[string]any{"error": err.Error()}
	var rl *policy.RateLimitedError
	if errors.As(err, &rl) {
		body["retry_after_ms"] = rl.Remaining.Milliseconds()
	}
	writeJSON(w, status, body)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) getFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order := feed.ParseSortOrder(q.Get("sort"))
	msgs := h.s.Feed(order, q.Get("tag"), q.Get("q"))
	writeJSON(w, http.StatusOK, struct {
		Sort     feed.SortOrder   `json:"sort"`
		Count    int              `json:"count"`
		Messages []models.Message `json:"messages"`
	}{Sort: order, Count: len(msgs), Messages: msgs})
}

func (h *handlers) getPopularTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Tags []feed.TagCount `json:"tags"`
	}{Tags: h.s.PopularTags()})
}

func (h *handlers) getMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, parent, ok := h.s.Message(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "message not found"})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message models.Message      `json:"message"`
		Parent  *session.ParentInfo `json:"parent,omitempty"`
	}{Message: m, Parent: parent})
}

func (h *handlers) postMessage(w http.ResponseWriter, r *http.Request) {
	var req policy.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	id, err := h.s.Engine().Send(r.Context(), h.s.Principal(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *handlers) postVote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Weight int `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.s.Engine().ToggleVote(r.Context(), h.s.Principal(), id, req.Weight); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.s.Engine().Delete(r.Context(), h.s.Principal(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) postBlock(w http.ResponseWriter, r *http.Request) {
	sender := mux.Vars(r)["sender"]
	if r.URL.Query().Get("global") == "1" {
		if err := h.s.Engine().BlockSenderGlobal(r.Context(), h.s.Principal(), sender); err != nil {
			writeError(w, err)
			return
		}
	} else {
		h.s.Engine().BlockSender(sender)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteBlock(w http.ResponseWriter, r *http.Request) {
	h.s.Engine().UnblockSender(mux.Vars(r)["sender"])
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	p := h.s.Principal()
	var cooldownMs int64
	if p != nil {
		cooldownMs = h.s.Engine().Remaining(p).Milliseconds()
	}
	depth, capacity, dropped := h.s.QueueStats()
	writeJSON(w, http.StatusOK, struct {
		Principal    *models.Principal `json:"principal"`
		CooldownMs   int64             `json:"cooldown_remaining_ms"`
		Messages     int               `json:"messages"`
		QueueDepth   int               `json:"queue_depth"`
		QueueCap     int               `json:"queue_capacity"`
		QueueDropped uint64            `json:"queue_dropped"`
	}{Principal: p, CooldownMs: cooldownMs, Messages: h.s.Store().Len(),
		QueueDepth: depth, QueueCap: capacity, QueueDropped: dropped})
}

func (h *handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token required"})
		return
	}
	p, err := h.s.Identity().SignIn(r.Context(), req.Token)
	if err != nil {
		logger.Warn("sign_in_failed", "err", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credential"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	h.s.Identity().SignOut()
	w.WriteHeader(http.StatusNoContent)
}

// escalateAdmin grants the admin flag to the signed-in principal when
// the shared passphrase matches; the provider must support escalation.
func (h *handlers) escalateAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	type escalator interface{ EscalateAdmin(string) error }
	esc, ok := h.s.Identity().(escalator)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "escalation not supported"})
		return
	}
	start := time.Now()
	if err := esc.EscalateAdmin(req.Passphrase); err != nil {
		logger.Warn("admin_escalation_failed", "took", time.Since(start).String())
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credential"})
		return
	}
	writeJSON(w, http.StatusOK, h.s.Principal())
}
