// Package project implements the row projector: it flattens a completed,
// watch-list-matched transaction into the four flat row sets the batch
// committer persists.
package project

import (
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/log"
	jsoniter "github.com/json-iterator/go"

	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/reassembly"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Projector turns a complete transaction into a RowSet. MissingHeaderLog
// receives one line per block height whose header has already been
// evicted from the cache by the time the transaction completed, for
// offline reconciliation.
type Projector struct {
	Cache            *reassembly.Cache
	MissingHeaderLog io.Writer
}

func New(cache *reassembly.Cache, missingHeaderLog io.Writer) *Projector {
	return &Projector{Cache: cache, MissingHeaderLog: missingHeaderLog}
}

// Project produces rows in the order the spec fixes: block appearances,
// then receipts, then accounts, then the transaction row itself.
func (p *Projector) Project(tx *model.PendingTransaction, accounts []string) (model.RowSet, error) {
	txHash := tx.TransactionHash().String()
	signerID := tx.Transaction.SignedTx.SignerID

	var rows model.RowSet

	for _, height := range tx.Blocks {
		header, ok := p.Cache.GetAndRemoveBlockHeader(height)
		if !ok {
			log.Warn("Missing block header for transaction", "height", height, "tx_hash", txHash)
			if err := p.logMissingHeader(height, txHash, signerID, tx.TxBlockHeight); err != nil {
				return rows, model.Fatalf("project: writing missing header log: %w", err)
			}
			continue
		}
		rows.BlockTxs = append(rows.BlockTxs, model.BlockTxRow{
			BlockHeight:    height,
			BlockHash:      header.Hash.String(),
			BlockTimestamp: header.Timestamp,
			TxHash:         txHash,
			SignerID:       signerID,
			TxBlockHeight:  tx.TxBlockHeight,
		})
		// Non-destructive read: put the header back.
		if err := p.Cache.InsertBlockHeader(header); err != nil {
			return rows, err
		}
	}

	for _, r := range tx.Transaction.Receipts {
		rows.ReceiptTxs = append(rows.ReceiptTxs, model.ReceiptTxRow{
			ReceiptID:        r.Receipt.ReceiptID().String(),
			TxHash:           txHash,
			SignerID:         signerID,
			TxBlockHeight:    tx.TxBlockHeight,
			TxBlockTimestamp: tx.TxBlockTimestamp,
		})
	}
	for _, dr := range tx.Transaction.DataReceipts {
		rows.ReceiptTxs = append(rows.ReceiptTxs, model.ReceiptTxRow{
			ReceiptID:        dr.ReceiptID.String(),
			TxHash:           txHash,
			SignerID:         signerID,
			TxBlockHeight:    tx.TxBlockHeight,
			TxBlockTimestamp: tx.TxBlockTimestamp,
		})
	}

	sortedAccounts := append([]string(nil), accounts...)
	sort.Strings(sortedAccounts)
	for _, a := range sortedAccounts {
		rows.AccountTxs = append(rows.AccountTxs, model.AccountTxRow{
			AccountID:        a,
			TxHash:           txHash,
			SignerID:         signerID,
			TxBlockHeight:    tx.TxBlockHeight,
			TxBlockTimestamp: tx.TxBlockTimestamp,
		})
	}

	txJSON, err := json.Marshal(tx.Transaction)
	if err != nil {
		return rows, model.Fatalf("project: serializing transaction %s: %w", txHash, err)
	}
	lastBlockHeight := tx.TxBlockHeight
	if n := len(tx.Blocks); n > 0 {
		lastBlockHeight = tx.Blocks[n-1]
	}
	rows.Transaction = &model.TransactionRow{
		TxHash:           txHash,
		SignerID:         signerID,
		TxBlockHeight:    tx.TxBlockHeight,
		TxBlockHash:      tx.TxBlockHash.String(),
		TxBlockTimestamp: tx.TxBlockTimestamp,
		TransactionJSON:  txJSON,
		LastBlockHeight:  lastBlockHeight,
	}

	return rows, nil
}

func (p *Projector) logMissingHeader(height uint64, txHash, signerID string, txBlockHeight uint64) error {
	if p.MissingHeaderLog == nil {
		return nil
	}
	_, err := fmt.Fprintf(p.MissingHeaderLog, "%d %s %s %d\n", height, txHash, signerID, txBlockHeight)
	return err
}
