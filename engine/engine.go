// Package engine wires the reassembly pipeline's components together: it
// recovers the working set and watch list at startup, then runs the
// steady-state fetch/process/commit loop until the feed is exhausted or
// the context is canceled.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/near-indexer/txwatch/block"
	"github.com/near-indexer/txwatch/commit"
	"github.com/near-indexer/txwatch/config"
	"github.com/near-indexer/txwatch/feed"
	"github.com/near-indexer/txwatch/filter"
	"github.com/near-indexer/txwatch/project"
	"github.com/near-indexer/txwatch/reassembly"
	"github.com/near-indexer/txwatch/sink"
	"github.com/near-indexer/txwatch/store"
)

// Engine owns every long-lived component and runs the fetch/process/commit
// loop over a single background fetcher goroutine and the calling
// goroutine as processor.
type Engine struct {
	store     *store.Store
	cache     *reassembly.Cache
	sink      sink.Sink
	processor *block.Processor
	projector *project.Projector
	committer *commit.Committer

	channelCapacity int

	// lastCommittedHeight is the sink's high-water mark at startup. Blocks
	// at or below it are replayed to rebuild the working set but never
	// re-projected or re-committed.
	lastCommittedHeight uint64
	startBlock          uint64
	cacheReady          bool

	// currentHeight is the most recent block height processed this run,
	// persisted as the working set's high-water mark on shutdown.
	currentHeight uint64
}

// Open performs startup & recovery: load the persisted working set,
// reconcile it against the sink's committed high-water mark, compile the
// watch list, and compute the height the feed must start from.
func Open(ctx context.Context, cfg config.Config, s *store.Store, sk sink.Sink, missingHeaderLog io.Writer) (*Engine, error) {
	cache, cacheLastBlockHeight, err := reassembly.Load(s, cfg.HeaderRetention)
	if err != nil {
		return nil, fmt.Errorf("engine: loading working set: %w", err)
	}

	dbBlockHeight, err := sk.MaxBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: querying sink high-water mark: %w", err)
	}

	lastBlockHeightEffective := cacheLastBlockHeight
	if dbBlockHeight > lastBlockHeightEffective {
		lastBlockHeightEffective = dbBlockHeight
	}
	cacheReady := cacheLastBlockHeight == lastBlockHeightEffective

	var startBlock uint64
	if cacheReady {
		startBlock = lastBlockHeightEffective + 1
	} else {
		startBlock = 1
		if lastBlockHeightEffective > cfg.SafeCatchUp {
			startBlock = lastBlockHeightEffective - cfg.SafeCatchUp
		}
	}

	entries, err := sk.WatchList(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: loading watch list: %w", err)
	}
	watchList, err := filter.Compile(entries)
	if err != nil {
		return nil, err
	}

	log.Info("Recovered working set",
		"cache_last_block_height", cacheLastBlockHeight,
		"db_block_height", dbBlockHeight,
		"cache_ready", cacheReady,
		"start_block", startBlock,
		"watch_list", watchList,
	)

	e := &Engine{
		store:               s,
		cache:               cache,
		sink:                sk,
		processor:           block.New(cache, watchList),
		projector:           project.New(cache, missingHeaderLog),
		committer:           commit.New(sk, cfg.MinBatch, cfg.SaveStep, cfg.CommitEveryBlock),
		channelCapacity:     cfg.ChannelCapacity,
		lastCommittedHeight: dbBlockHeight,
		startBlock:          startBlock,
		cacheReady:          cacheReady,
		currentHeight:       cacheLastBlockHeight,
	}
	return e, nil
}

// StartBlock is the height the caller's feed factory must begin fetching
// from.
func (e *Engine) StartBlock() uint64 { return e.startBlock }

// Run drives the steady-state loop: a background goroutine fetches blocks
// into a bounded channel, while this goroutine processes them one at a
// time, projecting and committing rows for every block past the sink's
// recovered high-water mark. It returns when the feed is exhausted
// (feed.ErrExhausted) or ctx is canceled; both are reported as nil once the
// final flush has completed successfully.
func (e *Engine) Run(ctx context.Context, f feed.Feed) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocks := make(chan *feed.BlockWithTxHashes, e.channelCapacity)
	fetchErr := make(chan error, 1)

	go func() {
		defer close(blocks)
		for {
			blk, err := f.Next(ctx)
			if err != nil {
				if !errors.Is(err, feed.ErrExhausted) && !errors.Is(err, context.Canceled) {
					fetchErr <- err
				} else {
					fetchErr <- nil
				}
				return
			}
			select {
			case blocks <- blk:
			case <-ctx.Done():
				fetchErr <- nil
				return
			}
		}
	}()

	skipMissingReceipts := !e.cacheReady

	for blk := range blocks {
		blockHeight := blk.Block.Header.Height

		if skipMissingReceipts && blockHeight > e.lastCommittedHeight {
			skipMissingReceipts = false
			log.Info("Safe catch-up window closed", "block", blockHeight)
		}

		completed, err := e.processor.ProcessBlock(blk, skipMissingReceipts)
		if err != nil {
			cancel()
			return fmt.Errorf("engine: processing block %d: %w", blockHeight, err)
		}
		e.currentHeight = blockHeight

		if blockHeight > e.lastCommittedHeight {
			for _, c := range completed {
				rows, err := e.projector.Project(c.Tx, c.Accounts)
				if err != nil {
					cancel()
					return fmt.Errorf("engine: projecting transaction %s: %w", c.Tx.TransactionHash(), err)
				}
				e.committer.Add(rows)
			}
			if err := e.committer.MaybeCommit(ctx, blockHeight); err != nil {
				cancel()
				return fmt.Errorf("engine: committing at block %d: %w", blockHeight, err)
			}
		}
	}

	if err := <-fetchErr; err != nil {
		return fmt.Errorf("engine: fetching blocks: %w", err)
	}

	return e.Shutdown()
}

// Shutdown flushes any buffered rows and the working set, forcing a
// durable write-out before the process exits.
func (e *Engine) Shutdown() error {
	if err := e.committer.Commit(context.Background()); err != nil {
		return fmt.Errorf("engine: final commit: %w", err)
	}
	if err := e.cache.Flush(e.store, e.currentHeight); err != nil {
		return fmt.Errorf("engine: flushing working set: %w", err)
	}
	log.Info("Flushed working set", "last_block_height", e.currentHeight)
	return nil
}
