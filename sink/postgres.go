package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/near-indexer/txwatch/model"
)

const uniqueViolation = "23505"

// Postgres is the production Sink, backed by a pgxpool connection pool.
// SkipWrites implements the POSTGRES_SKIP_COMMIT dry-run knob: every insert
// is accepted without touching the database.
type Postgres struct {
	pool       *pgxpool.Pool
	SkipWrites bool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("sink: connecting to postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) InsertTransactions(ctx context.Context, rows []model.TransactionRow) error {
	if p.SkipWrites || len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO transactions
			(transaction_hash, signer_id, tx_block_height, tx_block_hash, tx_block_timestamp, transaction, last_block_height)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.TxHash, r.SignerID, int64(r.TxBlockHeight), r.TxBlockHash, int64(r.TxBlockTimestamp),
			[]byte(r.TransactionJSON), int64(r.LastBlockHeight))
	}
	return p.sendBatch(ctx, batch, len(rows))
}

func (p *Postgres) InsertAccountTxs(ctx context.Context, rows []model.AccountTxRow) error {
	if p.SkipWrites || len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO account_txs
			(account_id, transaction_hash, signer_id, tx_block_height, tx_block_timestamp)
			VALUES ($1, $2, $3, $4, $5)`,
			r.AccountID, r.TxHash, r.SignerID, int64(r.TxBlockHeight), int64(r.TxBlockTimestamp))
	}
	return p.sendBatch(ctx, batch, len(rows))
}

func (p *Postgres) InsertBlockTxs(ctx context.Context, rows []model.BlockTxRow) error {
	if p.SkipWrites || len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO block_txs
			(block_height, block_hash, block_timestamp, transaction_hash, signer_id, tx_block_height)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			int64(r.BlockHeight), r.BlockHash, int64(r.BlockTimestamp), r.TxHash, r.SignerID, int64(r.TxBlockHeight))
	}
	return p.sendBatch(ctx, batch, len(rows))
}

func (p *Postgres) InsertReceiptTxs(ctx context.Context, rows []model.ReceiptTxRow) error {
	if p.SkipWrites || len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO receipt_txs
			(receipt_id, transaction_hash, signer_id, tx_block_height, tx_block_timestamp)
			VALUES ($1, $2, $3, $4, $5)`,
			r.ReceiptID, r.TxHash, r.SignerID, int64(r.TxBlockHeight), int64(r.TxBlockTimestamp))
	}
	return p.sendBatch(ctx, batch, len(rows))
}

// sendBatch executes every queued statement and reports the first
// non-duplicate-key error, if any. Unique-key violations are swallowed here
// and surfaced to the caller as ErrDuplicateKey only when every statement in
// the batch hit one; a mix of new and duplicate rows is not an error at all.
func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	duplicates := 0
	var firstErr error
	for i := 0; i < n; i++ {
		_, err := br.Exec()
		if err == nil {
			continue
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			duplicates++
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if duplicates == n && n > 0 {
		return ErrDuplicateKey
	}
	return nil
}

func (p *Postgres) MaxBlockHeight(ctx context.Context) (uint64, error) {
	var max *int64
	err := p.pool.QueryRow(ctx, `SELECT max(block_height) FROM block_txs`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("sink: querying max block height: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return uint64(*max), nil
}

func (p *Postgres) WatchList(ctx context.Context) ([]model.WatchListEntry, error) {
	rows, err := p.pool.Query(ctx, `SELECT account_id, is_regex FROM watch_list`)
	if err != nil {
		return nil, fmt.Errorf("sink: querying watch list: %w", err)
	}
	defer rows.Close()

	var out []model.WatchListEntry
	for rows.Next() {
		var e model.WatchListEntry
		if err := rows.Scan(&e.AccountID, &e.IsRegex); err != nil {
			return nil, fmt.Errorf("sink: scanning watch list row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
