package models

import (
	"encoding/json"

	"retrolog/pkg/tags"
)

// Message is the domain projection of one remote document. SequenceNumber
// is assigned locally at first observation and is never written back to
// the remote collection.
type Message struct {
	ID              string `json:"id"`
	SequenceNumber  uint64 `json:"sequence_number,omitempty"`
	SenderID        string `json:"sender_id,omitempty"`
	SenderName      string `json:"sender_name,omitempty"`
	SenderAvatarRef string `json:"sender_avatar_ref,omitempty"`
	Title           string `json:"title,omitempty"`
	Content         string `json:"content,omitempty"`
	// Tags keep their original case; matching is case-insensitive.
	Tags []string `json:"tags,omitempty"`
	// Media order is display order.
	Media []string `json:"media,omitempty"`
	// ParentID may reference a message that is no longer (or not yet)
	// present; consumers degrade to a no-parent context.
	ParentID string `json:"parent_id,omitempty"`
	// TS is the author/server claimed creation time (unix nanoseconds).
	TS int64 `json:"ts,omitempty"`
	// Votes maps voter id -> signed weight; at most one entry per voter.
	Votes map[string]int `json:"votes,omitempty"`
}

// Score is the sum of all vote weights.
func (m *Message) Score() int {
	var s int
	for _, v := range m.Votes {
		s += v
	}
	return s
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps mutating under the store lock.
func (m *Message) Clone() Message {
	out := *m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Media != nil {
		out.Media = append([]string(nil), m.Media...)
	}
	if m.Votes != nil {
		out.Votes = make(map[string]int, len(m.Votes))
		for k, v := range m.Votes {
			out.Votes[k] = v
		}
	}
	return out
}

// DecodeMessage unmarshals a remote document snapshot, tolerating missing
// optional fields by defaulting them instead of rejecting the document.
// Tags from other writers are normalized the same way local sends are:
// empty entries dropped, case-insensitive duplicates collapsed.
func DecodeMessage(doc []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(doc, &m); err != nil {
		return Message{}, err
	}
	m.Tags = tags.Normalize(m.Tags)
	if m.Media == nil {
		m.Media = []string{}
	}
	if m.Votes == nil {
		m.Votes = map[string]int{}
	}
	return m, nil
}
