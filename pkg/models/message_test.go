package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreSumsVoteWeights(t *testing.T) {
	m := Message{Votes: map[string]int{"a": 1, "b": 1, "c": -1}}
	assert.Equal(t, 1, m.Score())
	assert.Equal(t, 0, (&Message{}).Score())
}

func TestDecodeMessageDefaultsOptionalFields(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"id":"x","content":"hi"}`))
	require.NoError(t, err)
	assert.NotNil(t, m.Tags)
	assert.NotNil(t, m.Media)
	assert.NotNil(t, m.Votes)

	_, err = DecodeMessage([]byte(`{broken`))
	require.Error(t, err)
}

func TestDecodeMessageNormalizesTags(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"id":"x","tags":["  ","","#ok","#OK","#go"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"#ok", "#go"}, m.Tags)
}

func TestCloneIsIndependent(t *testing.T) {
	m := Message{Tags: []string{"#a"}, Media: []string{"ref"}, Votes: map[string]int{"v": 1}}
	c := m.Clone()
	c.Tags[0] = "#b"
	c.Media[0] = "other"
	c.Votes["v"] = -1
	assert.Equal(t, "#a", m.Tags[0])
	assert.Equal(t, "ref", m.Media[0])
	assert.Equal(t, 1, m.Votes["v"])
}
