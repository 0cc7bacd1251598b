// Package feed defines the upstream chain feed contract. Block fetching and
// retry logic live entirely on the feed side; the engine only ever calls
// Next and trusts it to retry transparently.
package feed

import (
	"context"
	"errors"

	"github.com/near-indexer/txwatch/model"
)

// ErrExhausted is returned by Next when the feed has no more blocks to
// give (reached the configured end height, or the upstream source closed).
var ErrExhausted = errors.New("feed: exhausted")

// Feed provides an ordered sequence of finalized blocks starting at a given
// height. Next blocks until the next block is available, the feed is
// exhausted (ErrExhausted), or ctx is canceled.
type Feed interface {
	Next(ctx context.Context) (*BlockWithTxHashes, error)
}

// Chunk carries the transactions newly submitted in a shard, along with any
// receipts spawned directly by the chunk (only the Data-kind ones matter to
// the reassembly engine; Action receipts are observed later via their
// execution outcome).
type Chunk struct {
	Transactions []IndexerTransactionWithOutcome `json:"transactions"`
	Receipts     []model.Receipt                 `json:"receipts"`
}

// IndexerTransactionWithOutcome is a newly submitted transaction paired
// with the outcome of its implicit first receipt.
type IndexerTransactionWithOutcome struct {
	Transaction model.SignedTransaction `json:"transaction"`
	Outcome     model.ExecutionOutcome  `json:"outcome"`
}

// ReceiptExecutionOutcome pairs a receipt with the outcome of executing it.
type ReceiptExecutionOutcome struct {
	Receipt          model.Receipt          `json:"receipt"`
	ExecutionOutcome model.ExecutionOutcome `json:"execution_outcome"`
}

// Shard is one shard's worth of a block: an optional chunk of newly
// submitted work, and the execution outcomes of receipts that ran in this
// shard during this block.
type Shard struct {
	Chunk                    *Chunk                    `json:"chunk,omitempty"`
	ReceiptExecutionOutcomes []ReceiptExecutionOutcome `json:"receipt_execution_outcomes"`
}

// Block carries only the header; the body lives in its shards.
type Block struct {
	Header model.BlockHeader `json:"header"`
}

// BlockWithTxHashes is the unit the feed produces and the engine consumes.
type BlockWithTxHashes struct {
	Block  Block   `json:"block"`
	Shards []Shard `json:"shards"`
}
