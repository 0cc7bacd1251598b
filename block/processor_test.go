package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/near-indexer/txwatch/feed"
	"github.com/near-indexer/txwatch/filter"
	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/reassembly"
)

func hashN(n byte) model.Hash {
	var h model.Hash
	h[len(h)-1] = n
	return h
}

func newProcessor(t *testing.T, entries []model.WatchListEntry) *Processor {
	t.Helper()
	cache := reassembly.New(10)
	w, err := filter.Compile(entries)
	require.NoError(t, err)
	return New(cache, w)
}

func blockWithChunk(height uint64, chunk feed.Chunk, outcomes []feed.ReceiptExecutionOutcome) *feed.BlockWithTxHashes {
	return &feed.BlockWithTxHashes{
		Block: feed.Block{Header: model.BlockHeader{Height: height, Hash: hashN(byte(height)), Timestamp: height}},
		Shards: []feed.Shard{
			{Chunk: &chunk, ReceiptExecutionOutcomes: outcomes},
		},
	}
}

// Scenario 1: single-block complete tx.
func TestProcessBlockSingleBlockComplete(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	txHash := hashN(1)
	r1 := hashN(2)

	blk := blockWithChunk(100,
		feed.Chunk{
			Transactions: []feed.IndexerTransactionWithOutcome{{
				Transaction: model.SignedTransaction{Hash: txHash, SignerID: "alice.near"},
				Outcome:     model.ExecutionOutcome{Outcome: model.Outcome{ReceiptIDs: []model.Hash{r1}}},
			}},
		},
		[]feed.ReceiptExecutionOutcome{{
			Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: r1, ReceiverID: "bob.near"}},
			ExecutionOutcome: model.ExecutionOutcome{Outcome: model.Outcome{}},
		}},
	)

	completed, err := p.ProcessBlock(blk, false)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	tx := completed[0].Tx
	assert.True(t, tx.IsComplete())
	assert.Equal(t, []uint64{100}, tx.Blocks)
	assert.ElementsMatch(t, []string{"alice.near", "bob.near"}, completed[0].Accounts)
}

// Scenario 2: cross-block fan-out.
func TestProcessBlockCrossBlockFanOut(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	txHash, r1, r2 := hashN(1), hashN(2), hashN(3)

	blk100 := blockWithChunk(100,
		feed.Chunk{
			Transactions: []feed.IndexerTransactionWithOutcome{{
				Transaction: model.SignedTransaction{Hash: txHash, SignerID: "alice.near"},
				Outcome:     model.ExecutionOutcome{Outcome: model.Outcome{ReceiptIDs: []model.Hash{r1}}},
			}},
		},
		nil,
	)
	completed, err := p.ProcessBlock(blk100, false)
	require.NoError(t, err)
	assert.Empty(t, completed)

	blk101 := blockWithChunk(101, feed.Chunk{}, []feed.ReceiptExecutionOutcome{{
		Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: r1, ReceiverID: "bob.near"}},
		ExecutionOutcome: model.ExecutionOutcome{Outcome: model.Outcome{ReceiptIDs: []model.Hash{r2}}},
	}})
	completed, err = p.ProcessBlock(blk101, false)
	require.NoError(t, err)
	assert.Empty(t, completed)

	blk102 := blockWithChunk(102, feed.Chunk{}, []feed.ReceiptExecutionOutcome{{
		Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: r2, ReceiverID: "carol.near"}},
		ExecutionOutcome: model.ExecutionOutcome{},
	}})
	completed, err = p.ProcessBlock(blk102, false)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	tx := completed[0].Tx
	assert.Equal(t, []uint64{100, 101, 102}, tx.Blocks)
	assert.Len(t, tx.Transaction.Receipts, 2)
}

// Scenario 3: data-receipt dependency.
func TestProcessBlockDataReceiptDependency(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	txHash, r1, r2, d1 := hashN(1), hashN(2), hashN(3), hashN(4)

	blk100 := blockWithChunk(100,
		feed.Chunk{
			Transactions: []feed.IndexerTransactionWithOutcome{{
				Transaction: model.SignedTransaction{Hash: txHash, SignerID: "alice.near"},
				Outcome:     model.ExecutionOutcome{Outcome: model.Outcome{ReceiptIDs: []model.Hash{r1}}},
			}},
			Receipts: []model.Receipt{
				{Data: &model.DataReceipt{ReceiptID: hashN(5), DataID: d1}},
			},
		},
		[]feed.ReceiptExecutionOutcome{{
			Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: r1, ReceiverID: "bob.near"}},
			ExecutionOutcome: model.ExecutionOutcome{Outcome: model.Outcome{ReceiptIDs: []model.Hash{r2}}},
		}},
	)
	completed, err := p.ProcessBlock(blk100, false)
	require.NoError(t, err)
	assert.Empty(t, completed)

	blk101 := blockWithChunk(101, feed.Chunk{}, []feed.ReceiptExecutionOutcome{{
		Receipt: model.Receipt{Action: &model.ActionReceipt{
			ReceiptID:    r2,
			ReceiverID:   "carol.near",
			InputDataIDs: []model.Hash{d1},
		}},
		ExecutionOutcome: model.ExecutionOutcome{},
	}})
	completed, err = p.ProcessBlock(blk101, false)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	tx := completed[0].Tx
	require.Len(t, tx.Transaction.DataReceipts, 1)
	assert.Equal(t, d1, tx.Transaction.DataReceipts[0].DataID)
}

// Scenario 4: watch-list filter.
func TestProcessBlockWatchListFilter(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	txHash, r1 := hashN(1), hashN(2)
	blk := blockWithChunk(100,
		feed.Chunk{
			Transactions: []feed.IndexerTransactionWithOutcome{{
				Transaction: model.SignedTransaction{Hash: txHash, SignerID: "bob.near"},
				Outcome:     model.ExecutionOutcome{Outcome: model.Outcome{ReceiptIDs: []model.Hash{r1}}},
			}},
		},
		[]feed.ReceiptExecutionOutcome{{
			Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: r1, ReceiverID: "carol.near"}},
			ExecutionOutcome: model.ExecutionOutcome{},
		}},
	)
	completed, err := p.ProcessBlock(blk, false)
	require.NoError(t, err)
	assert.Empty(t, completed, "transaction touching no watch-listed account must be dropped silently")
}

// Scenario 6 (partial): restart with gap tolerates a missing receipt->tx
// mapping in skip mode instead of failing.
func TestProcessBlockSkipModeTolerance(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	orphanReceipt := hashN(9)
	blk := blockWithChunk(50, feed.Chunk{}, []feed.ReceiptExecutionOutcome{{
		Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: orphanReceipt, ReceiverID: "bob.near"}},
		ExecutionOutcome: model.ExecutionOutcome{},
	}})

	completed, err := p.ProcessBlock(blk, true)
	require.NoError(t, err)
	assert.Empty(t, completed)
}

func TestProcessBlockMissingReceiptIsFatalOutsideSkipMode(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	orphanReceipt := hashN(9)
	blk := blockWithChunk(50, feed.Chunk{}, []feed.ReceiptExecutionOutcome{{
		Receipt:          model.Receipt{Action: &model.ActionReceipt{ReceiptID: orphanReceipt, ReceiverID: "bob.near"}},
		ExecutionOutcome: model.ExecutionOutcome{},
	}})

	_, err := p.ProcessBlock(blk, false)
	require.Error(t, err)
	assert.True(t, model.IsFatal(err))
}

func TestProcessBlockDataReceiptInOutcomePositionIsFatal(t *testing.T) {
	p := newProcessor(t, []model.WatchListEntry{{AccountID: "alice.near"}})

	blk := blockWithChunk(50, feed.Chunk{}, []feed.ReceiptExecutionOutcome{{
		Receipt:          model.Receipt{Data: &model.DataReceipt{ReceiptID: hashN(1), DataID: hashN(2)}},
		ExecutionOutcome: model.ExecutionOutcome{},
	}})

	_, err := p.ProcessBlock(blk, false)
	require.Error(t, err)
	assert.True(t, model.IsFatal(err))
}
