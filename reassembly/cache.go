// Package reassembly holds the in-memory indexes the block processor reads
// and mutates on every block: block headers, the receipt->transaction
// index, the pooled data receipts awaiting a consumer, and the pending
// transactions themselves. Every operation here runs on the single
// processing goroutine; nothing in this package needs locking.
package reassembly

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/ethereum/go-ethereum/log"

	"github.com/near-indexer/txwatch/model"
)

// DefaultHeaderRetention is the block_headers trim threshold (§6).
const DefaultHeaderRetention = 2000

// Cache is the reassembly engine's entire working set.
type Cache struct {
	headerRetention int

	blockHeaders *treemap.Map // uint64 height -> model.BlockHeader
	receiptToTx  map[model.Hash]model.Hash
	dataReceipts map[model.Hash]model.DataReceipt
	transactions map[model.Hash]*model.PendingTransaction
}

func New(headerRetention int) *Cache {
	if headerRetention <= 0 {
		headerRetention = DefaultHeaderRetention
	}
	return &Cache{
		headerRetention: headerRetention,
		blockHeaders:    treemap.NewWith(utils.UInt64Comparator),
		receiptToTx:     make(map[model.Hash]model.Hash),
		dataReceipts:    make(map[model.Hash]model.DataReceipt),
		transactions:    make(map[model.Hash]*model.PendingTransaction),
	}
}

// InsertBlockHeader inserts h. A second insertion at the same height must
// carry an identical hash; any mismatch is a fatal invariant violation.
func (c *Cache) InsertBlockHeader(h model.BlockHeader) error {
	if existing, ok := c.blockHeaders.Get(h.Height); ok {
		old := existing.(model.BlockHeader)
		if old.Hash != h.Hash {
			return model.Fatalf("reassembly: header mismatch at height %d: have %s, got %s", h.Height, old.Hash, h.Hash)
		}
		log.Warn("Duplicate block header", "height", h.Height)
	}
	c.blockHeaders.Put(h.Height, h)
	return nil
}

func (c *Cache) GetAndRemoveBlockHeader(height uint64) (model.BlockHeader, bool) {
	v, ok := c.blockHeaders.Get(height)
	if !ok {
		return model.BlockHeader{}, false
	}
	c.blockHeaders.Remove(height)
	return v.(model.BlockHeader), true
}

// InsertReceiptToTx registers receiptID as owned by txHash. Remapping an
// existing receipt to a different transaction is a fatal invariant
// violation; remapping it to the same transaction is merely logged.
func (c *Cache) InsertReceiptToTx(receiptID, txHash model.Hash) error {
	if old, ok := c.receiptToTx[receiptID]; ok {
		if old != txHash {
			return model.Fatalf("reassembly: receipt %s remapped from tx %s to tx %s", receiptID, old, txHash)
		}
		log.Warn("Duplicate receipt_id", "receipt_id", receiptID, "tx_hash", txHash)
	}
	c.receiptToTx[receiptID] = txHash
	return nil
}

func (c *Cache) GetAndRemoveReceiptToTx(receiptID model.Hash) (model.Hash, bool) {
	tx, ok := c.receiptToTx[receiptID]
	if !ok {
		return model.Hash{}, false
	}
	delete(c.receiptToTx, receiptID)
	return tx, true
}

func (c *Cache) RemoveReceiptToTx(receiptID model.Hash) {
	delete(c.receiptToTx, receiptID)
}

// InsertDataReceipt pools a data receipt awaiting its consumer. A second
// insertion under the same data id with a different receipt id is a fatal
// invariant violation.
func (c *Cache) InsertDataReceipt(dataID model.Hash, r model.DataReceipt) error {
	if old, ok := c.dataReceipts[dataID]; ok {
		if old.ReceiptID != r.ReceiptID {
			return model.Fatalf("reassembly: data_id %s remapped from receipt %s to receipt %s", dataID, old.ReceiptID, r.ReceiptID)
		}
		log.Warn("Duplicate data_id", "data_id", dataID)
	}
	c.dataReceipts[dataID] = r
	return nil
}

func (c *Cache) GetAndRemoveDataReceipt(dataID model.Hash) (model.DataReceipt, bool) {
	r, ok := c.dataReceipts[dataID]
	if !ok {
		return model.DataReceipt{}, false
	}
	delete(c.dataReceipts, dataID)
	return r, true
}

// InsertTransaction registers pt and maps every id in pendingReceiptIDs to
// its hash in the receipt->tx index.
func (c *Cache) InsertTransaction(pt *model.PendingTransaction, pendingReceiptIDs []model.Hash) error {
	txHash := pt.TransactionHash()
	for _, id := range pendingReceiptIDs {
		if err := c.InsertReceiptToTx(id, txHash); err != nil {
			return err
		}
	}
	c.transactions[txHash] = pt
	return nil
}

func (c *Cache) GetAndRemoveTransaction(txHash model.Hash) (*model.PendingTransaction, bool) {
	pt, ok := c.transactions[txHash]
	if !ok {
		return nil, false
	}
	delete(c.transactions, txHash)
	return pt, true
}

// TrimHeaders evicts the oldest retained heights while the header index
// holds more than the configured retention.
func (c *Cache) TrimHeaders() {
	for c.blockHeaders.Size() > c.headerRetention {
		keys := c.blockHeaders.Keys()
		if len(keys) == 0 {
			return
		}
		c.blockHeaders.Remove(keys[0])
	}
}

func (c *Cache) HeaderCount() int { return c.blockHeaders.Size() }

func (c *Cache) Stats() string {
	return fmt.Sprintf("mem: %d tx, %d r, %d dr, %d h",
		len(c.transactions), len(c.receiptToTx), len(c.dataReceipts), c.blockHeaders.Size())
}
