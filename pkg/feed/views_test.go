package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrolog/pkg/models"
)

func msg(id string, ts int64, votes map[string]int) models.Message {
	return models.Message{ID: id, TS: ts, Votes: votes}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestParseSortOrderDefaultsToBest(t *testing.T) {
	assert.Equal(t, SortBest, ParseSortOrder(""))
	assert.Equal(t, SortBest, ParseSortOrder("banana"))
	assert.Equal(t, SortNewest, ParseSortOrder(" Newest "))
	assert.Equal(t, SortOldest, ParseSortOrder("OLDEST"))
}

func TestSortBestBreaksTiesByNewerTimestamp(t *testing.T) {
	in := []models.Message{
		msg("low", 50, map[string]int{"a": -1}),
		msg("tied_old", 10, map[string]int{"a": 1}),
		msg("tied_new", 20, map[string]int{"b": 1}),
		msg("top", 5, map[string]int{"a": 1, "b": 1}),
	}
	got := Sort(in, SortBest)
	require.Equal(t, []string{"top", "tied_new", "tied_old", "low"}, ids(got))
	// input untouched
	require.Equal(t, "low", in[0].ID)
}

func TestSortNewestOldest(t *testing.T) {
	in := []models.Message{msg("b", 2, nil), msg("a", 1, nil), msg("c", 3, nil)}
	assert.Equal(t, []string{"c", "b", "a"}, ids(Sort(in, SortNewest)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Sort(in, SortOldest)))
}

func TestFilterBlocked(t *testing.T) {
	in := []models.Message{
		{ID: "1", SenderID: "alice"},
		{ID: "2", SenderID: "troll"},
		{ID: "3", SenderID: "bob"},
	}
	got := FilterBlocked(in, map[string]struct{}{"troll": {}})
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestFilterByTagCaseInsensitive(t *testing.T) {
	in := []models.Message{
		{ID: "1", Tags: []string{"#News"}},
		{ID: "2", Tags: []string{"#tech"}},
		{ID: "3", Tags: []string{"#NEWS", "#tech"}},
	}
	assert.Equal(t, []string{"1", "3"}, ids(FilterByTag(in, "news")))
	assert.Equal(t, []string{"2", "3"}, ids(FilterByTag(in, "#Tech")))
}

func TestFilterByQueryMatchesAllFields(t *testing.T) {
	in := []models.Message{
		{ID: "1", SequenceNumber: 42, Content: "plain text"},
		{ID: "2", Title: "Release Notes", Content: "nothing"},
		{ID: "3", Tags: []string{"#release"}, Content: "also nothing"},
	}
	assert.Equal(t, []string{"1"}, ids(FilterByQuery(in, "42")))
	assert.Equal(t, []string{"2", "3"}, ids(FilterByQuery(in, "release")))
	assert.Equal(t, []string{"1"}, ids(FilterByQuery(in, "PLAIN")))
	assert.Len(t, FilterByQuery(in, ""), 3)
	assert.Empty(t, FilterByQuery(in, "zzz"))
}

func TestPopularTagsGroupsCaseInsensitively(t *testing.T) {
	in := []models.Message{
		{Tags: []string{"#News", "#tech"}},
		{Tags: []string{"#news"}},
		{Tags: []string{"#NEWS"}},
	}
	got := PopularTags(in, nil)
	require.Len(t, got, 2)
	// first-seen spelling wins the display slot
	assert.Equal(t, TagCount{Tag: "#News", Count: 3}, got[0])
	assert.Equal(t, TagCount{Tag: "#tech", Count: 1}, got[1])
}

func TestPopularTagsIncludesKnownCatalogAtZero(t *testing.T) {
	in := []models.Message{{Tags: []string{"#go"}}}
	got := PopularTags(in, []string{"go", "Music", "#art"})
	require.Len(t, got, 3)
	assert.Equal(t, TagCount{Tag: "#go", Count: 1}, got[0])
	// unused catalog entries rendered with a '#' prefix at zero count
	assert.Contains(t, got, TagCount{Tag: "#Music", Count: 0})
	assert.Contains(t, got, TagCount{Tag: "#art", Count: 0})
}

func TestParentContext(t *testing.T) {
	in := []models.Message{{ID: "p", SequenceNumber: 7, SenderID: "alice"}}

	seq, sender, found := ParentContext(in, "p")
	require.True(t, found)
	assert.Equal(t, uint64(7), seq)
	assert.Equal(t, "alice", sender)

	_, _, found = ParentContext(in, "dangling")
	assert.False(t, found)
	_, _, found = ParentContext(in, "")
	assert.False(t, found)
}
