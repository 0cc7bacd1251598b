package reassembly

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/store"
)

func TestFlushAndLoadRoundTrip(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "ws"), false)
	require.NoError(t, err)
	defer s.Close()

	c := New(5)
	header := model.BlockHeader{Height: 10, Hash: hashN(1)}
	require.NoError(t, c.InsertBlockHeader(header))

	txHash, r1 := hashN(2), hashN(3)
	pt := &model.PendingTransaction{
		Transaction:       model.TransactionView{SignedTx: model.SignedTransaction{Hash: txHash, SignerID: "alice.near"}},
		PendingReceiptIDs: []model.Hash{r1},
	}
	require.NoError(t, c.InsertTransaction(pt, []model.Hash{r1}))

	require.NoError(t, c.Flush(s, 10))

	loaded, lastBlockHeight, err := Load(s, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), lastBlockHeight)

	got, ok := loaded.GetAndRemoveBlockHeader(10)
	require.True(t, ok)
	assert.Equal(t, header, got)

	gotTxHash, ok := loaded.GetAndRemoveReceiptToTx(r1)
	require.True(t, ok)
	assert.Equal(t, txHash, gotTxHash)

	gotTx, ok := loaded.GetAndRemoveTransaction(txHash)
	require.True(t, ok)
	assert.Equal(t, "alice.near", gotTx.Transaction.SignedTx.SignerID)
}

func TestLoadEmptyStoreYieldsZero(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "ws"), false)
	require.NoError(t, err)
	defer s.Close()

	c, lastBlockHeight, err := Load(s, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), lastBlockHeight)
	assert.Equal(t, 0, c.HeaderCount())
}
