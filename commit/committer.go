// Package commit implements the batch committer: it buffers the four row
// kinds the row projector produces and flushes them to the sink on
// block-height triggers, retrying transient errors and treating duplicate
// keys as an idempotent no-op.
package commit

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"

	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/sink"
)

const (
	DefaultMinBatch = 10000
	DefaultSaveStep = 1000
	maxRetries      = 10
	initialBackoff  = 100 * time.Millisecond
)

// Committer buffers rows across blocks and commits them to the sink in
// batches, one logical insert per row kind.
type Committer struct {
	sink             sink.Sink
	minBatch         int
	saveStep         uint64
	commitEveryBlock bool

	transactions []model.TransactionRow
	accountTxs   []model.AccountTxRow
	blockTxs     []model.BlockTxRow
	receiptTxs   []model.ReceiptTxRow
}

func New(s sink.Sink, minBatch int, saveStep uint64, commitEveryBlock bool) *Committer {
	if minBatch <= 0 {
		minBatch = DefaultMinBatch
	}
	if saveStep == 0 {
		saveStep = DefaultSaveStep
	}
	return &Committer{sink: s, minBatch: minBatch, saveStep: saveStep, commitEveryBlock: commitEveryBlock}
}

// Add merges one transaction's row set into the buffers.
func (c *Committer) Add(rows model.RowSet) {
	if rows.Transaction != nil {
		c.transactions = append(c.transactions, *rows.Transaction)
	}
	c.accountTxs = append(c.accountTxs, rows.AccountTxs...)
	c.blockTxs = append(c.blockTxs, rows.BlockTxs...)
	c.receiptTxs = append(c.receiptTxs, rows.ReceiptTxs...)
}

// MaybeCommit is called once per processed block. It commits when the
// transactions buffer has reached the minimum batch size, the block height
// is a round multiple of the save step, or commit-every-block is set.
func (c *Committer) MaybeCommit(ctx context.Context, blockHeight uint64) error {
	isRoundBlock := blockHeight%c.saveStep == 0
	if isRoundBlock {
		log.Info("Buffer sizes",
			"block", blockHeight,
			"transactions", len(c.transactions),
			"account_txs", len(c.accountTxs),
			"block_txs", len(c.blockTxs),
			"receipt_txs", len(c.receiptTxs),
		)
	}
	if len(c.transactions) >= c.minBatch || isRoundBlock || c.commitEveryBlock {
		return c.Commit(ctx)
	}
	return nil
}

// Commit swaps the buffers for fresh empties and flushes each non-empty
// buffer to the sink in turn.
func (c *Committer) Commit(ctx context.Context) error {
	transactions, accountTxs, blockTxs, receiptTxs := c.transactions, c.accountTxs, c.blockTxs, c.receiptTxs
	c.transactions, c.accountTxs, c.blockTxs, c.receiptTxs = nil, nil, nil, nil

	if len(transactions) > 0 {
		if err := insertWithRetry(ctx, "transactions", func() error {
			return c.sink.InsertTransactions(ctx, transactions)
		}); err != nil {
			return err
		}
	}
	if len(accountTxs) > 0 {
		if err := insertWithRetry(ctx, "account_txs", func() error {
			return c.sink.InsertAccountTxs(ctx, accountTxs)
		}); err != nil {
			return err
		}
	}
	if len(blockTxs) > 0 {
		if err := insertWithRetry(ctx, "block_txs", func() error {
			return c.sink.InsertBlockTxs(ctx, blockTxs)
		}); err != nil {
			return err
		}
	}
	if len(receiptTxs) > 0 {
		if err := insertWithRetry(ctx, "receipt_txs", func() error {
			return c.sink.InsertReceiptTxs(ctx, receiptTxs)
		}); err != nil {
			return err
		}
	}

	log.Info("Committed",
		"transactions", len(transactions),
		"account_txs", len(accountTxs),
		"block_txs", len(blockTxs),
		"receipt_txs", len(receiptTxs),
	)
	return nil
}

// insertWithRetry retries fn with exponential backoff (100ms, doubling, up
// to 10 attempts). A duplicate-key error is logged and treated as success;
// any other error surviving the final attempt is a fatal violation.
func insertWithRetry(ctx context.Context, table string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, sink.ErrDuplicateKey) {
			log.Warn("This entry already exists", "table", table, "err", err)
			return nil
		}
		if attempt >= maxRetries {
			return model.Fatalf("commit: inserting into %s failed after %d attempts: %w", table, attempt, err)
		}
		log.Error("Error inserting rows", "table", table, "attempt", attempt, "err", err)
		select {
		case <-time.After(b.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
