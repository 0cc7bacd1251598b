package model

import jsoniter "github.com/json-iterator/go"

// TransactionRow, AccountTxRow, BlockTxRow and ReceiptTxRow are the four
// flat projections of a completed transaction that the row projector
// produces and the batch committer persists.

type TransactionRow struct {
	TxHash           string              `json:"transaction_hash"`
	SignerID         string              `json:"signer_id"`
	TxBlockHeight    uint64              `json:"tx_block_height"`
	TxBlockHash      string              `json:"tx_block_hash"`
	TxBlockTimestamp uint64              `json:"tx_block_timestamp"`
	TransactionJSON  jsoniter.RawMessage `json:"transaction"`
	LastBlockHeight  uint64              `json:"last_block_height"`
}

type AccountTxRow struct {
	AccountID        string `json:"account_id"`
	TxHash           string `json:"transaction_hash"`
	SignerID         string `json:"signer_id"`
	TxBlockHeight    uint64 `json:"tx_block_height"`
	TxBlockTimestamp uint64 `json:"tx_block_timestamp"`
}

type BlockTxRow struct {
	BlockHeight      uint64 `json:"block_height"`
	BlockHash        string `json:"block_hash"`
	BlockTimestamp   uint64 `json:"block_timestamp"`
	TxHash           string `json:"transaction_hash"`
	SignerID         string `json:"signer_id"`
	TxBlockHeight    uint64 `json:"tx_block_height"`
}

type ReceiptTxRow struct {
	ReceiptID        string `json:"receipt_id"`
	TxHash           string `json:"transaction_hash"`
	SignerID         string `json:"signer_id"`
	TxBlockHeight    uint64 `json:"tx_block_height"`
	TxBlockTimestamp uint64 `json:"tx_block_timestamp"`
}

// RowSet is the per-transaction output of the row projector, later merged
// into the batch committer's buffers.
type RowSet struct {
	Transaction *TransactionRow
	AccountTxs  []AccountTxRow
	BlockTxs    []BlockTxRow
	ReceiptTxs  []ReceiptTxRow
}
