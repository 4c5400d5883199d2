package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/models"
	"bscwallet/pkg/task"
)

// Checker runs one balance check.
type Checker interface {
	Check(ctx context.Context, addresses []string, progress func(string)) (models.BalanceReport, error)
}

// Watcher keeps the most recent balance report for a set of addresses. Checks run as
// balance tasks, so a manual check and a scheduled one never overlap.
type Watcher struct {
	checker   Checker
	tasks     *task.Manager
	addresses []string
	interval  time.Duration

	mu       sync.RWMutex
	last     *models.BalanceReport
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher. An interval of zero disables the polling loop; Refresh
// still works.
func NewWatcher(checker Checker, tasks *task.Manager, addresses []string, interval time.Duration) *Watcher {
	return &Watcher{
		checker:   checker,
		tasks:     tasks,
		addresses: addresses,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Addresses returns the default address list.
func (w *Watcher) Addresses() []string {
	return append([]string(nil), w.addresses...)
}

// Refresh starts a balance task for addresses, or for the default list when empty.
// The report is remembered once the task ends, including a partial one.
func (w *Watcher) Refresh(addresses []string) (*task.Task, error) {
	if len(addresses) == 0 {
		addresses = w.addresses
	}
	if len(addresses) == 0 {
		return nil, errors.New("no addresses to check")
	}
	addrs := append([]string(nil), addresses...)
	return w.tasks.Start(task.OpBalance, func(ctx context.Context, progress func(string)) (any, error) {
		report, err := w.checker.Check(ctx, addrs, progress)
		if err == nil || report.Checked > 0 {
			w.mu.Lock()
			w.last = &report
			w.mu.Unlock()
		}
		return report, err
	})
}

// LastReport returns the most recent report, if any.
func (w *Watcher) LastReport() (models.BalanceReport, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return models.BalanceReport{}, false
	}
	return *w.last, true
}

// Start begins the polling loop.
func (w *Watcher) Start(ctx context.Context) {
	if w.interval <= 0 || len(w.addresses) == 0 {
		return
	}
	go w.pollingLoop(ctx)
}

// Stop stops the polling loop.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	w.tick()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) tick() {
	_, err := w.Refresh(nil)
	if errors.Is(err, errs.ErrBusy) {
		logger.DebugC("watcher", "Balance check already running, skipping tick")
		return
	}
	if err != nil {
		logger.WarnCF("watcher", "Scheduled balance check not started", map[string]any{"error": err.Error()})
	}
}
