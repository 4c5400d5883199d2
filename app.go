package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bscwallet/pkg/balance"
	"bscwallet/pkg/config"
	"bscwallet/pkg/events"
	"bscwallet/pkg/keygen"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/rpc"
	"bscwallet/pkg/supply"
	"bscwallet/pkg/task"
	"bscwallet/pkg/watcher"
)

// app wires the components for one process.
type app struct {
	cfg     config.Config
	client  *rpc.Client
	bus     *events.Bus
	tasks   *task.Manager
	reader  *balance.Reader
	watcher *watcher.Watcher
	gen     *keygen.Generator
	dist    *supply.Distributor
}

type appOptions struct {
	supplyDelay   time.Duration
	watchInterval time.Duration
}

func defaultAppOptions() appOptions {
	return appOptions{supplyDelay: supply.DefaultDelay}
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) *app {
	client := rpc.NewClient(cfg.Chain)
	bus := events.NewBus()
	tasks := task.NewManager(ctx, bus)
	reader := balance.NewReader(client, cfg.Chain, balance.WithRateLimit(cfg.Balance.RPCRateLimit))

	return &app{
		cfg:     cfg,
		client:  client,
		bus:     bus,
		tasks:   tasks,
		reader:  reader,
		watcher: watcher.NewWatcher(reader, tasks, cfg.Balance.Addresses, opts.watchInterval),
		gen:     keygen.NewGenerator(cfg.Wallet.OutputDir),
		dist:    supply.NewDistributor(client, supply.WithDelay(opts.supplyDelay)),
	}
}

func (a *app) connect(ctx context.Context) error {
	return a.client.Connect(ctx)
}

func (a *app) close() {
	a.watcher.Stop()
	a.client.Close()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// initLogging applies the log settings. The TUI always logs to a file.
func initLogging(cfg config.LogConfig, tui bool) error {
	opts := logger.Options{Level: cfg.Level, File: cfg.File, JSON: cfg.JSON}
	if tui && opts.File == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		dir = filepath.Join(dir, "bscwallet")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
		opts.File = filepath.Join(dir, "bscwallet.log")
	}
	return logger.Init(opts)
}
