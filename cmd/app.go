package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nibzard/stickyboard/internal/api"
	"github.com/nibzard/stickyboard/internal/board"
	"github.com/nibzard/stickyboard/internal/config"
	"github.com/nibzard/stickyboard/internal/logging"
	"github.com/nibzard/stickyboard/internal/prefs"
)

// app bundles what the board commands share for one run.
type app struct {
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	runLog *logging.RunLogger
	logger *log.Logger
	store  *prefs.SQLiteStore
	board  *board.Board
}

// openApp opens the run log, the preference store and the board.
func openApp(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	runLog, err := logging.NewRunLogger(cfg.LogDir, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	logger := runLog.Logger

	store, err := prefs.Open(cfg.StateFile, logger)
	if err != nil {
		_ = runLog.Close()
		return nil, fmt.Errorf("opening state file: %w", err)
	}

	client, err := api.New(cfg.APIURL,
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithLogger(logger.WithPrefix("api")),
	)
	if err != nil {
		_ = store.Close()
		_ = runLog.Close()
		return nil, err
	}

	sortKey, err := cfg.SortKey()
	if err != nil {
		_ = store.Close()
		_ = runLog.Close()
		return nil, err
	}

	b, err := board.New(ctx, client, store,
		board.WithLogger(logger.WithPrefix("board")),
		board.WithSortKey(sortKey),
	)
	if err != nil {
		_ = store.Close()
		_ = runLog.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		out:    stdout,
		errOut: stderr,
		runLog: runLog,
		logger: logger,
		store:  store,
		board:  b,
	}, nil
}

// Close releases the store and the run log.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.runLog.Close())
}
