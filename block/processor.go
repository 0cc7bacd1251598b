// Package block implements the block processor: it ingests one block at a
// time and advances the reassembly state machine held in the reassembly
// cache, emitting the transactions that complete and pass the watch list.
package block

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/near-indexer/txwatch/feed"
	"github.com/near-indexer/txwatch/filter"
	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/reassembly"
)

// Completed is a transaction that just finished reassembling and matched
// the watch list, carrying the accounts extracted for it so the row
// projector never has to recompute them.
type Completed struct {
	Tx       *model.PendingTransaction
	Accounts []string
}

// Processor owns the reassembly cache and the compiled watch list, and
// advances both one block at a time. It is never touched from more than
// one goroutine.
type Processor struct {
	Cache     *reassembly.Cache
	WatchList *filter.WatchList
}

func New(cache *reassembly.Cache, watchList *filter.WatchList) *Processor {
	return &Processor{Cache: cache, WatchList: watchList}
}

// ProcessBlock advances the state machine by one block. skipMissingReceipts
// gates whether a missing receipt->tx mapping or missing input data
// receipt is tolerated (restart re-scan window) or fatal (steady state).
func (p *Processor) ProcessBlock(blk *feed.BlockWithTxHashes, skipMissingReceipts bool) ([]Completed, error) {
	header := blk.Block.Header
	blockHeight := header.Height

	if err := p.Cache.InsertBlockHeader(header); err != nil {
		return nil, err
	}

	if err := p.chunkPass(blk, blockHeight, header); err != nil {
		return nil, err
	}

	completed, err := p.outcomePass(blk, blockHeight, skipMissingReceipts)
	if err != nil {
		return nil, err
	}

	p.Cache.TrimHeaders()

	return completed, nil
}

func (p *Processor) chunkPass(blk *feed.BlockWithTxHashes, blockHeight uint64, header model.BlockHeader) error {
	for _, shard := range blk.Shards {
		if shard.Chunk == nil {
			continue
		}
		for _, txWithOutcome := range shard.Chunk.Transactions {
			outcome := txWithOutcome.Outcome
			pendingReceiptIDs := append([]model.Hash(nil), outcome.Outcome.ReceiptIDs...)
			model.StripExecutionOutcome(&outcome)

			pt := &model.PendingTransaction{
				TxBlockHeight:    blockHeight,
				TxBlockHash:      header.Hash,
				TxBlockTimestamp: header.Timestamp,
				Blocks:           []uint64{blockHeight},
				Transaction: model.TransactionView{
					SignedTx:    txWithOutcome.Transaction,
					RootOutcome: outcome,
				},
				PendingReceiptIDs: pendingReceiptIDs,
			}
			if err := p.Cache.InsertTransaction(pt, pendingReceiptIDs); err != nil {
				return err
			}
		}

		for _, r := range shard.Chunk.Receipts {
			if err := r.Validate(); err != nil {
				return model.Fatalf("block: malformed receipt in chunk: %w", err)
			}
			if r.IsData() {
				if err := p.Cache.InsertDataReceipt(r.Data.DataID, *r.Data); err != nil {
					return err
				}
			}
			// Action receipts are ignored here; they are observed again
			// via their execution outcome.
		}
	}
	return nil
}

func (p *Processor) outcomePass(blk *feed.BlockWithTxHashes, blockHeight uint64, skipMissingReceipts bool) ([]Completed, error) {
	var completed []Completed

	for _, shard := range blk.Shards {
		for _, entry := range shard.ReceiptExecutionOutcomes {
			receipt := entry.Receipt
			if err := receipt.Validate(); err != nil {
				return nil, model.Fatalf("block: malformed receipt in execution outcome: %w", err)
			}
			if receipt.IsData() {
				return nil, model.Fatalf("block: data receipt %s appeared in execution outcome position", receipt.ReceiptID())
			}

			outcome := entry.ExecutionOutcome
			model.StripExecutionOutcome(&outcome)
			receiptID := receipt.ReceiptID()

			txHash, ok := p.Cache.GetAndRemoveReceiptToTx(receiptID)
			if !ok {
				if skipMissingReceipts {
					log.Warn("Missing tx_hash for action receipt_id", "receipt_id", receiptID)
					continue
				}
				return nil, model.Fatalf("block: missing tx_hash for receipt_id %s", receiptID)
			}

			pt, ok := p.Cache.GetAndRemoveTransaction(txHash)
			if !ok {
				return nil, model.Fatalf("block: missing transaction for receipt %s (tx %s)", receiptID, txHash)
			}

			pt.RemovePendingReceipt(receiptID)
			pt.AppendBlock(blockHeight)

			if abandoned, err := p.resolveDataReceipts(pt, receipt, skipMissingReceipts); err != nil {
				return nil, err
			} else if abandoned {
				continue
			}

			newPendingIDs := append([]model.Hash(nil), outcome.Outcome.ReceiptIDs...)
			pt.Transaction.Receipts = append(pt.Transaction.Receipts, model.ReceiptWithOutcome{
				Receipt: receipt,
				Outcome: outcome,
			})
			pt.PendingReceiptIDs = append(pt.PendingReceiptIDs, newPendingIDs...)

			if pt.IsComplete() {
				accounts := filter.ExtractAccounts(pt)
				if p.WatchList.Matches(accounts) {
					completed = append(completed, Completed{Tx: pt, Accounts: accounts})
				}
				continue
			}

			if err := p.Cache.InsertTransaction(pt, newPendingIDs); err != nil {
				return nil, err
			}
		}
	}

	return completed, nil
}

// resolveDataReceipts fetches and removes every data receipt a just-executed
// action receipt depends on, attaching them to pt. If any is missing while
// skipMissingReceipts is set, pt is abandoned: its remaining receipt->tx
// entries are purged and true is returned so the caller drops it.
func (p *Processor) resolveDataReceipts(pt *model.PendingTransaction, receipt model.Receipt, skipMissingReceipts bool) (abandoned bool, err error) {
	if !receipt.IsAction() {
		return false, nil
	}
	for _, dataID := range receipt.Action.InputDataIDs {
		dr, ok := p.Cache.GetAndRemoveDataReceipt(dataID)
		if !ok {
			if skipMissingReceipts {
				log.Warn("Missing data receipt for data_id", "data_id", dataID)
				for _, id := range pt.PendingReceiptIDs {
					p.Cache.RemoveReceiptToTx(id)
				}
				return true, nil
			}
			return false, model.Fatalf("block: missing data receipt for data_id %s", dataID)
		}
		pt.Transaction.DataReceipts = append(pt.Transaction.DataReceipts, dr)
	}
	return false, nil
}
