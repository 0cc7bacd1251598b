// Command txindexer runs the transaction reassembly engine: it follows a
// finalized block feed, reassembles each transaction's causal tree of
// receipts, and commits the ones matching the operator's watch list to
// Postgres.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/near-indexer/txwatch/config"
	"github.com/near-indexer/txwatch/engine"
	"github.com/near-indexer/txwatch/feed"
	"github.com/near-indexer/txwatch/model"
	"github.com/near-indexer/txwatch/sink"
	"github.com/near-indexer/txwatch/store"
)

func main() {
	glogHandler := log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, false)
	log.SetDefault(log.NewLogger(glogHandler))

	app := &cli.App{
		Name:  "txindexer",
		Usage: "reassemble and index NEAR transactions",
		Commands: []*cli.Command{
			{
				Name:   "transactions",
				Usage:  "run the transaction reassembly pipeline",
				Action: runTransactions,
			},
			{
				Name:  "actions",
				Usage: "run the flat action-log pipeline (not implemented)",
				Action: func(*cli.Context) error {
					return fmt.Errorf("txindexer: the actions pipeline is a non-goal of this build")
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("txindexer exited with error", "err", err)
	}
}

func runTransactions(*cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.StorePath, cfg.CleanStart)
	if err != nil {
		return err
	}
	defer st.Close()

	pg, err := sink.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	pg.SkipWrites = cfg.PostgresSkipCommit

	var missingHeaderLog io.Writer
	if cfg.MissingHeaderLogPath != "" {
		f, err := os.OpenFile(cfg.MissingHeaderLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("txindexer: opening missing header log: %w", err)
		}
		defer f.Close()
		missingHeaderLog = f
	}

	eng, err := engine.Open(ctx, cfg, st, pg, missingHeaderLog)
	if err != nil {
		return err
	}

	firstBlockHeight, err := feed.FetchFirstBlockHeight(ctx, http.DefaultClient, cfg.FeedBaseURL)
	if err != nil {
		return fmt.Errorf("txindexer: fetching first available block: %w", err)
	}
	startBlock := eng.StartBlock()
	if firstBlockHeight > startBlock {
		startBlock = firstBlockHeight
	}
	log.Info("Starting transaction reassembly", "start_block", startBlock)

	f := feed.NewHTTPFeed(ctx, feed.HTTPConfig{
		BaseURL:    cfg.FeedBaseURL,
		NumWorkers: cfg.FeedWorkers,
	}, startBlock)
	defer f.Close()

	if err := eng.Run(ctx, f); err != nil && !model.IsFatal(err) {
		log.Error("txindexer run loop exited with error", "err", err)
		return err
	} else if err != nil {
		log.Crit("txindexer hit a fatal invariant violation", "err", err)
	}
	return nil
}
