package project

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/reassembly"
)

func TestProjectEmitsRowsInOrder(t *testing.T) {
	cache := reassembly.New(10)
	header := model.BlockHeader{Height: 100, Hash: hashN(1), Timestamp: 42}
	require.NoError(t, cache.InsertBlockHeader(header))

	var log bytes.Buffer
	p := New(cache, &log)

	tx := &model.PendingTransaction{
		TxBlockHeight:    100,
		TxBlockHash:      header.Hash,
		TxBlockTimestamp: 42,
		Blocks:           []uint64{100},
		Transaction: model.TransactionView{
			SignedTx: model.SignedTransaction{Hash: hashN(9), SignerID: "alice.near"},
			Receipts: []model.ReceiptWithOutcome{
				{Receipt: model.Receipt{Action: &model.ActionReceipt{ReceiptID: hashN(2), ReceiverID: "bob.near"}}},
			},
		},
	}

	rows, err := p.Project(tx, []string{"alice.near", "bob.near"})
	require.NoError(t, err)

	require.Len(t, rows.BlockTxs, 1)
	assert.Equal(t, uint64(100), rows.BlockTxs[0].BlockHeight)

	require.Len(t, rows.ReceiptTxs, 1)
	assert.Equal(t, hashN(2).String(), rows.ReceiptTxs[0].ReceiptID)

	require.Len(t, rows.AccountTxs, 2)
	assert.Equal(t, "alice.near", rows.AccountTxs[0].AccountID)
	assert.Equal(t, "bob.near", rows.AccountTxs[1].AccountID)

	require.NotNil(t, rows.Transaction)
	assert.Equal(t, uint64(100), rows.Transaction.LastBlockHeight)
	assert.Equal(t, "alice.near", rows.Transaction.SignerID)

	// Non-destructive read: the header must still be in the cache.
	_, ok := cache.GetAndRemoveBlockHeader(100)
	assert.True(t, ok)

	assert.Zero(t, log.Len(), "no missing header should have been logged")
}

func TestProjectLogsMissingHeader(t *testing.T) {
	cache := reassembly.New(10)
	var log bytes.Buffer
	p := New(cache, &log)

	tx := &model.PendingTransaction{
		TxBlockHeight: 100,
		Blocks:        []uint64{100},
		Transaction: model.TransactionView{
			SignedTx: model.SignedTransaction{Hash: hashN(9), SignerID: "alice.near"},
		},
	}

	rows, err := p.Project(tx, []string{"alice.near"})
	require.NoError(t, err)
	assert.Empty(t, rows.BlockTxs)
	assert.NotZero(t, log.Len())
}

func hashN(n byte) model.Hash {
	var h model.Hash
	h[len(h)-1] = n
	return h
}
