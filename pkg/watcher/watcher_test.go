package watcher

import (
	"context"
	"math/big"
	"testing"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/events"
	"bscwallet/pkg/models"
	"bscwallet/pkg/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, addresses []string, progress func(string)) (models.BalanceReport, error) {
	args := m.Called(ctx, addresses, progress)
	return args.Get(0).(models.BalanceReport), args.Error(1)
}

func report(checked int) models.BalanceReport {
	return models.BalanceReport{
		Checked: checked,
		Totals:  models.BalanceTotals{Native: big.NewFloat(1.5)},
	}
}

func TestRefresh_StoresReport(t *testing.T) {
	mc := new(MockChecker)
	mc.On("Check", mock.Anything, []string{"0xa"}, mock.Anything).Return(report(1), nil)

	w := NewWatcher(mc, task.NewManager(context.Background(), nil), []string{"0xa"}, 0)
	_, ok := w.LastReport()
	assert.False(t, ok)

	tk, err := w.Refresh(nil)
	require.NoError(t, err)
	res, err := tk.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, res.(models.BalanceReport).Checked)

	last, ok := w.LastReport()
	require.True(t, ok)
	assert.Equal(t, 1, last.Checked)
	mc.AssertExpectations(t)
}

func TestRefresh_ExplicitAddresses(t *testing.T) {
	mc := new(MockChecker)
	mc.On("Check", mock.Anything, []string{"0xb", "0xc"}, mock.Anything).Return(report(2), nil)

	w := NewWatcher(mc, task.NewManager(context.Background(), nil), []string{"0xa"}, 0)
	tk, err := w.Refresh([]string{"0xb", "0xc"})
	require.NoError(t, err)
	_, _ = tk.Wait()
	mc.AssertExpectations(t)
}

func TestRefresh_FailureKeepsPreviousReport(t *testing.T) {
	mc := new(MockChecker)
	mc.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(report(3), nil).Once()
	mc.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(models.BalanceReport{}, errs.ErrNetwork).Once()

	w := NewWatcher(mc, task.NewManager(context.Background(), nil), []string{"0xa"}, 0)
	tk, err := w.Refresh(nil)
	require.NoError(t, err)
	_, _ = tk.Wait()

	tk, err = w.Refresh(nil)
	require.NoError(t, err)
	_, err = tk.Wait()
	assert.ErrorIs(t, err, errs.ErrNetwork)

	last, ok := w.LastReport()
	require.True(t, ok)
	assert.Equal(t, 3, last.Checked)
}

func TestRefresh_NoAddresses(t *testing.T) {
	w := NewWatcher(new(MockChecker), task.NewManager(context.Background(), nil), nil, 0)
	_, err := w.Refresh(nil)
	assert.Error(t, err)
}

func TestPollingLoop(t *testing.T) {
	mc := new(MockChecker)
	mc.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(report(1), nil)

	bus := events.NewBus()
	sub := bus.Subscribe()
	w := NewWatcher(mc, task.NewManager(context.Background(), bus), []string{"0xa"}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	results := 0
	timeout := time.After(2 * time.Second)
	for results < 2 {
		select {
		case ev := <-sub:
			if ev.Type == events.EventResult && ev.Op == string(task.OpBalance) {
				results++
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for polls, got %d", results)
		}
	}
	w.Stop()
	w.Stop()
}
