package model

import mapset "github.com/deckarep/golang-set/v2"

// TransactionView is the accumulated view of a transaction's causal tree:
// the original signed transaction, its root execution outcome, and every
// action/data receipt collected while the tree was reassembled.
type TransactionView struct {
	SignedTx     SignedTransaction    `json:"transaction"`
	RootOutcome  ExecutionOutcome     `json:"execution_outcome"`
	Receipts     []ReceiptWithOutcome `json:"receipts"`
	DataReceipts []DataReceipt        `json:"data_receipts"`
}

// PendingTransaction is the central reassembly record: a transaction whose
// causal tree of receipts has not yet fully executed.
//
// Invariants (enforced by the reassembly cache, never by callers):
//   - PendingReceiptIDs is empty iff the transaction is complete.
//   - Blocks is strictly increasing and deduplicated.
//   - every id in PendingReceiptIDs is mapped in the cache's receipt->tx
//     index to this transaction's hash.
type PendingTransaction struct {
	TxBlockHeight     uint64            `json:"tx_block_height"`
	TxBlockHash       Hash              `json:"tx_block_hash"`
	TxBlockTimestamp  uint64            `json:"tx_block_timestamp"`
	Blocks            []uint64          `json:"blocks"`
	Transaction       TransactionView   `json:"transaction"`
	PendingReceiptIDs []Hash            `json:"pending_receipt_ids"`
}

func (pt *PendingTransaction) TransactionHash() Hash {
	return pt.Transaction.SignedTx.Hash
}

func (pt *PendingTransaction) IsComplete() bool {
	return len(pt.PendingReceiptIDs) == 0
}

// AppendBlock records height as the most recent block this transaction was
// touched in, unless it is already the last recorded height.
func (pt *PendingTransaction) AppendBlock(height uint64) {
	if len(pt.Blocks) == 0 || pt.Blocks[len(pt.Blocks)-1] != height {
		pt.Blocks = append(pt.Blocks, height)
	}
}

// RemovePendingReceipt deletes receiptID from the pending set.
func (pt *PendingTransaction) RemovePendingReceipt(receiptID Hash) {
	out := pt.PendingReceiptIDs[:0]
	for _, id := range pt.PendingReceiptIDs {
		if id != receiptID {
			out = append(out, id)
		}
	}
	pt.PendingReceiptIDs = out
}

// PendingReceiptSet returns the pending ids as a set, for set-membership
// checks.
func (pt *PendingTransaction) PendingReceiptSet() mapset.Set[Hash] {
	s := mapset.NewThreadUnsafeSet[Hash]()
	for _, id := range pt.PendingReceiptIDs {
		s.Add(id)
	}
	return s
}

// WatchListEntry is an operator-supplied account filter, loaded once at
// startup and immutable afterwards.
type WatchListEntry struct {
	AccountID string `json:"account_id"`
	IsRegex   bool   `json:"is_regex"`
}
