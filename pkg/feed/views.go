package feed

import (
	"sort"
	"strconv"
	"strings"

	"retrolog/pkg/models"
	"retrolog/pkg/tags"
)

// Derived views are pure functions over a snapshot, recomputed on read
// and never persisted. Callers apply FilterBlocked first so every view
// sees only non-blocked messages.

// SortOrder selects a feed ordering.
type SortOrder string

const (
	SortBest   SortOrder = "best"
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder maps a query value to a SortOrder, defaulting to best.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortNewest:
		return SortNewest
	case SortOldest:
		return SortOldest
	default:
		return SortBest
	}
}

// Sort returns msgs ordered by the given mode. best sorts by descending
// score with ties broken by descending timestamp; newest/oldest sort by
// timestamp alone. The input slice is not modified.
func Sort(msgs []models.Message, order SortOrder) []models.Message {
	out := append([]models.Message(nil), msgs...)
	switch order {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			si, sj := out[i].Score(), out[j].Score()
			if si != sj {
				return si > sj
			}
			return out[i].TS > out[j].TS
		})
	}
	return out
}

// FilterBlocked drops messages whose sender is in the viewer's block set.
func FilterBlocked(msgs []models.Message, blocked map[string]struct{}) []models.Message {
	if len(blocked) == 0 {
		return msgs
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, hit := blocked[m.SenderID]; hit {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FilterByTag keeps messages whose tag set contains tag,
// case-insensitively and ignoring a leading '#'.
func FilterByTag(msgs []models.Message, tag string) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if tags.Match(m.Tags, tag) {
			out = append(out, m)
		}
	}
	return out
}

// FilterByQuery keeps messages matching the query as a case-insensitive
// substring of content, title, the stringified sequence number or any
// tag. An empty query keeps everything.
func FilterByQuery(msgs []models.Message, query string) []models.Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return msgs
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Content), q) ||
			strings.Contains(strings.ToLower(m.Title), q) ||
			strings.Contains(strconv.FormatUint(m.SequenceNumber, 10), q) ||
			tagSubstring(m.Tags, q) {
			out = append(out, m)
		}
	}
	return out
}

func tagSubstring(set []string, q string) bool {
	for _, t := range set {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// TagCount is one popularity ranking entry.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// PopularTags counts tag occurrences across msgs, grouped
// case-insensitively with the first-seen spelling kept for display.
// Known catalog tags always appear, at zero count when unused, rendered
// with a '#' prefix. The result is sorted by descending count; ties keep
// insertion stability.
func PopularTags(msgs []models.Message, known []string) []TagCount {
	counts := map[string]int{}
	display := map[string]string{}
	var keys []string
	for _, m := range msgs {
		for _, t := range m.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			k := tags.Key(t)
			if _, seen := display[k]; !seen {
				display[k] = t
				keys = append(keys, k)
			}
			counts[k]++
		}
	}
	for _, pre := range known {
		k := tags.Key(pre)
		if k == "" {
			continue
		}
		if _, seen := display[k]; !seen {
			display[k] = "#" + strings.TrimPrefix(strings.TrimSpace(pre), "#")
			keys = append(keys, k)
		}
	}
	out := make([]TagCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, TagCount{Tag: display[k], Count: counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// ParentContext resolves a message's parent for display. A missing or
// dangling parent id degrades to found=false, never an error.
func ParentContext(msgs []models.Message, parentID string) (seq uint64, senderID string, found bool) {
	if parentID == "" {
		return 0, "", false
	}
	for i := range msgs {
		if msgs[i].ID == parentID {
			return msgs[i].SequenceNumber, msgs[i].SenderID, true
		}
	}
	return 0, "", false
}
