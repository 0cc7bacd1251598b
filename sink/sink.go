// Package sink defines the relational store contract: four append-mostly
// tables plus a read-only watch list, queried once at startup.
package sink

import (
	"context"
	"errors"

	"github.com/near-indexer/txwatch/model"
)

// ErrDuplicateKey is returned by any insert method when the row was
// rejected by the sink's unique-key constraint. The batch committer treats
// this as a successful, idempotent replay rather than a failure.
var ErrDuplicateKey = errors.New("sink: duplicate key")

// Sink accepts batched inserts into the four projection tables and reports
// duplicate-key violations distinctly from transient errors. Implementations
// must wrap unique-key violations in ErrDuplicateKey (via errors.Is/errors.Join
// or by returning it directly) so the committer can treat them as idempotent.
type Sink interface {
	InsertTransactions(ctx context.Context, rows []model.TransactionRow) error
	InsertAccountTxs(ctx context.Context, rows []model.AccountTxRow) error
	InsertBlockTxs(ctx context.Context, rows []model.BlockTxRow) error
	InsertReceiptTxs(ctx context.Context, rows []model.ReceiptTxRow) error

	// MaxBlockHeight returns the highest block_height ever recorded in the
	// block-appearance table, or 0 if the table is empty.
	MaxBlockHeight(ctx context.Context) (uint64, error)

	// WatchList returns the operator-supplied account filters.
	WatchList(ctx context.Context) ([]model.WatchListEntry, error)
}
