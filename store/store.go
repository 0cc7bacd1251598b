// Package store implements the working-set store: a typed key-value
// surface over an embedded, crash-durable byte store (goleveldb) used to
// checkpoint the reassembly cache's in-memory working set.
package store

import (
	"encoding/binary"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reserved keys, matching the four cache indexes plus the high-water mark.
const (
	KeyLastBlockHeight = "last_block_height"
	KeyBlockHeaders    = "block_headers"
	KeyReceiptToTx     = "receipt_to_tx"
	KeyDataReceipts    = "data_receipts"
	KeyTransactions    = "transactions"
)

// Store is a thin, typed wrapper around a goleveldb database directory.
type Store struct {
	db *leveldb.DB
}

// Open opens the working-set store at dir. When cleanStart is true the
// directory is wiped and recreated first; this is a debug-only affordance
// (see CLEAN_START) — normal operation always relies on the safe-catch-up
// rewind in the engine's startup sequence to reconcile a stale cache,
// never on wiping the store.
func Open(dir string, cleanStart bool) (*Store, error) {
	if cleanStart {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("store: wiping %s for clean start: %w", dir, err)
		}
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetUint64(key string) (uint64, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: get %s: %w", key, err)
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("store: value for %s has length %d, want 8", key, len(v))
	}
	return binary.LittleEndian.Uint64(v), true, nil
}

func (s *Store) SetUint64(key string, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	if err := s.db.Put([]byte(key), buf, nil); err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value stored under key into out. It reports whether
// the key was present.
func (s *Store) GetJSON(key string, out any) (bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", key, err)
	}
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("store: decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) SetJSON(key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", key, err)
	}
	if err := s.db.Put([]byte(key), buf, nil); err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}

// Flush forces a durable write-out of everything written since the last
// flush. Checkpoints are coarse-grained by design (the cache is only
// serialized on shutdown boundaries), so this is the single point where the
// working set's current state is guaranteed to survive a crash.
func (s *Store) Flush() error {
	wo := &opt.WriteOptions{Sync: true}
	if err := s.db.Put([]byte("__flush_marker__"), []byte{1}, wo); err != nil {
		return fmt.Errorf("store: flush: %w", err)
	}
	return nil
}
