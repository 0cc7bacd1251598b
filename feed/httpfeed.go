package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
)

// HTTPConfig configures an HTTPFeed.
type HTTPConfig struct {
	// BaseURL is fetched as BaseURL/v0/block/<height>, matching the
	// neardata-style block-by-height JSON endpoint.
	BaseURL string
	// NumWorkers fetch ahead of the current position concurrently; results
	// are still delivered to Next in strict height order.
	NumWorkers int
	Client     *http.Client
}

// HTTPFeed fetches finalized blocks one height at a time from an HTTP JSON
// endpoint, using a worker pool to fetch ahead of the consumer while still
// delivering blocks to Next in strictly increasing height order.
type HTTPFeed struct {
	cfg HTTPConfig

	nextHeight uint64
	results    chan fetchResult
	pending    map[uint64]fetchResult
	cancel     context.CancelFunc
}

type fetchResult struct {
	height uint64
	block  *BlockWithTxHashes
	err    error
}

// NewHTTPFeed starts NumWorkers fetcher goroutines pulling heights
// startHeight, startHeight+1, ... and returns a Feed that serves them back
// in order.
func NewHTTPFeed(ctx context.Context, cfg HTTPConfig, startHeight uint64) *HTTPFeed {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}

	ctx, cancel := context.WithCancel(ctx)
	f := &HTTPFeed{
		cfg:        cfg,
		nextHeight: startHeight,
		results:    make(chan fetchResult, cfg.NumWorkers*2),
		pending:    make(map[uint64]fetchResult),
		cancel:     cancel,
	}

	heights := make(chan uint64)
	go func() {
		defer close(heights)
		for h := startHeight; ; h++ {
			select {
			case heights <- h:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < cfg.NumWorkers; i++ {
		go f.worker(ctx, heights)
	}

	return f
}

func (f *HTTPFeed) worker(ctx context.Context, heights <-chan uint64) {
	for h := range heights {
		blk, err := f.fetchBlockWithRetry(ctx, h)
		select {
		case f.results <- fetchResult{height: h, block: blk, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// fetchBlockWithRetry retries transient HTTP/network errors with
// exponential backoff; a 404 (block not yet produced, or past the tip)
// is reported as ErrExhausted without retrying.
func (f *HTTPFeed) fetchBlockWithRetry(ctx context.Context, height uint64) (*BlockWithTxHashes, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		blk, status, err := f.fetchBlock(ctx, height)
		if err == nil {
			return blk, nil
		}
		if status == http.StatusNotFound {
			return nil, ErrExhausted
		}
		wait := b.NextBackOff()
		log.Warn("Block fetch failed, retrying", "height", height, "err", err, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *HTTPFeed) fetchBlock(ctx context.Context, height uint64) (*BlockWithTxHashes, int, error) {
	url := fmt.Sprintf("%s/v0/block/%d", f.cfg.BaseURL, height)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("feed: unexpected status %d fetching block %d", resp.StatusCode, height)
	}

	var blk BlockWithTxHashes
	if err := json.NewDecoder(resp.Body).Decode(&blk); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("feed: decoding block %d: %w", height, err)
	}
	return &blk, resp.StatusCode, nil
}

// Next returns the block at nextHeight, buffering out-of-order results from
// the worker pool until it arrives.
func (f *HTTPFeed) Next(ctx context.Context) (*BlockWithTxHashes, error) {
	for {
		if r, ok := f.pending[f.nextHeight]; ok {
			delete(f.pending, f.nextHeight)
			f.nextHeight++
			if r.err != nil {
				return nil, r.err
			}
			return r.block, nil
		}

		select {
		case r := <-f.results:
			f.pending[r.height] = r
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops every worker goroutine.
func (f *HTTPFeed) Close() {
	f.cancel()
}

// FetchFirstBlockHeight queries the height of the earliest block the
// endpoint retains, so the engine never starts before the chain's actual
// genesis or retention window.
func FetchFirstBlockHeight(ctx context.Context, client *http.Client, baseURL string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v0/first_block", nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed: unexpected status %d fetching first block", resp.StatusCode)
	}
	var blk BlockWithTxHashes
	if err := json.NewDecoder(resp.Body).Decode(&blk); err != nil {
		return 0, fmt.Errorf("feed: decoding first block: %w", err)
	}
	return blk.Block.Header.Height, nil
}
