package reassembly

import (
	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/store"
)

// Snapshot groups the cache's working set in one serializable value. Flush
// and Load do not use it: they write and read each index under its own
// reserved store key.
type Snapshot struct {
	LastBlockHeight uint64
	BlockHeaders    map[uint64]model.BlockHeader
	ReceiptToTx     map[model.Hash]model.Hash
	DataReceipts    map[model.Hash]model.DataReceipt
	Transactions    map[model.Hash]*model.PendingTransaction
}

// Flush persists the entire working set and the high-water mark, then
// forces a durable write-out of the store.
func (c *Cache) Flush(s *store.Store, lastBlockHeight uint64) error {
	headers := make(map[uint64]model.BlockHeader, c.blockHeaders.Size())
	for _, k := range c.blockHeaders.Keys() {
		v, _ := c.blockHeaders.Get(k)
		headers[k.(uint64)] = v.(model.BlockHeader)
	}
	if err := s.SetJSON(store.KeyBlockHeaders, headers); err != nil {
		return err
	}
	if err := s.SetJSON(store.KeyReceiptToTx, c.receiptToTx); err != nil {
		return err
	}
	if err := s.SetJSON(store.KeyDataReceipts, c.dataReceipts); err != nil {
		return err
	}
	if err := s.SetJSON(store.KeyTransactions, c.transactions); err != nil {
		return err
	}
	if err := s.SetUint64(store.KeyLastBlockHeight, lastBlockHeight); err != nil {
		return err
	}
	return s.Flush()
}

// Load populates the cache from whatever was most recently flushed to the
// store, returning the persisted last_block_height (0 if the store was
// empty, i.e. a first run).
func Load(s *store.Store, headerRetention int) (*Cache, uint64, error) {
	c := New(headerRetention)

	var headers map[uint64]model.BlockHeader
	if ok, err := s.GetJSON(store.KeyBlockHeaders, &headers); err != nil {
		return nil, 0, err
	} else if ok {
		for height, h := range headers {
			c.blockHeaders.Put(height, h)
		}
	}

	var receiptToTx map[model.Hash]model.Hash
	if ok, err := s.GetJSON(store.KeyReceiptToTx, &receiptToTx); err != nil {
		return nil, 0, err
	} else if ok {
		c.receiptToTx = receiptToTx
	}

	var dataReceipts map[model.Hash]model.DataReceipt
	if ok, err := s.GetJSON(store.KeyDataReceipts, &dataReceipts); err != nil {
		return nil, 0, err
	} else if ok {
		c.dataReceipts = dataReceipts
	}

	var transactions map[model.Hash]*model.PendingTransaction
	if ok, err := s.GetJSON(store.KeyTransactions, &transactions); err != nil {
		return nil, 0, err
	} else if ok {
		c.transactions = transactions
	}

	lastBlockHeight, _, err := s.GetUint64(store.KeyLastBlockHeight)
	if err != nil {
		return nil, 0, err
	}
	return c, lastBlockHeight, nil
}
