package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/near-indexer/txwatch/model"
)

func TestCompileAndMatchLiteral(t *testing.T) {
	w, err := Compile([]model.WatchListEntry{{AccountID: "alice", IsRegex: false}})
	require.NoError(t, err)

	assert.True(t, w.Matches([]string{"bob", "alice"}))
	assert.False(t, w.Matches([]string{"bob", "carol"}))
}

func TestCompileAndMatchRegex(t *testing.T) {
	w, err := Compile([]model.WatchListEntry{{AccountID: `^nft\..*\.near$`, IsRegex: true}})
	require.NoError(t, err)

	assert.True(t, w.Matches([]string{"nft.paras.near"}))
	assert.False(t, w.Matches([]string{"nft.paras.testnet"}))
}

func TestCompileInvalidRegexIsFatal(t *testing.T) {
	_, err := Compile([]model.WatchListEntry{{AccountID: "(unclosed", IsRegex: true}})
	require.Error(t, err)
	assert.True(t, model.IsFatal(err))
}

func TestMatchesEmptyAccountsNeverMatches(t *testing.T) {
	w, err := Compile([]model.WatchListEntry{{AccountID: "alice"}})
	require.NoError(t, err)
	assert.False(t, w.Matches(nil))
}
