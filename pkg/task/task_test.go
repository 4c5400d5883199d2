package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_RunsAndReportsResult(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()
	m := NewManager(context.Background(), bus)

	tk, err := m.Start(OpGenerate, func(ctx context.Context, progress func(string)) (any, error) {
		progress("Generating wallet 1/1")
		return 42, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tk.ID)

	res, err := tk.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, StateDone, tk.State())
	assert.Equal(t, StateDone, m.State(OpGenerate))

	var types []events.EventType
	for len(types) < 4 {
		select {
		case ev := <-sub:
			assert.Equal(t, tk.ID, ev.TaskID)
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", types)
		}
	}
	assert.Equal(t, []events.EventType{events.EventState, events.EventProgress, events.EventState, events.EventResult}, types)
}

func TestStart_BusyForSameOp(t *testing.T) {
	m := NewManager(context.Background(), nil)
	release := make(chan struct{})

	first, err := m.Start(OpSupply, func(ctx context.Context, _ func(string)) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, m.Busy(OpSupply))

	_, err = m.Start(OpSupply, func(context.Context, func(string)) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, errs.ErrBusy)

	// a different op is not blocked
	other, err := m.Start(OpBalance, func(context.Context, func(string)) (any, error) { return "ok", nil })
	require.NoError(t, err)
	_, _ = other.Wait()

	close(release)
	_, _ = first.Wait()
	assert.False(t, m.Busy(OpSupply))

	again, err := m.Start(OpSupply, func(context.Context, func(string)) (any, error) { return nil, nil })
	require.NoError(t, err)
	_, _ = again.Wait()
}

func TestCancel_KeepsPartialResult(t *testing.T) {
	m := NewManager(context.Background(), nil)
	started := make(chan struct{})

	tk, err := m.Start(OpSupply, func(ctx context.Context, _ func(string)) (any, error) {
		close(started)
		<-ctx.Done()
		return "partial", ctx.Err()
	})
	require.NoError(t, err)
	<-started
	tk.Cancel()

	res, err := tk.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial", res)
	assert.Equal(t, StateCanceled, tk.State())
}

func TestFailedAndPanicked(t *testing.T) {
	m := NewManager(context.Background(), nil)

	tk, err := m.Start(OpBalance, func(context.Context, func(string)) (any, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)
	_, err = tk.Wait()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, StateFailed, tk.State())
	assert.Equal(t, "boom", tk.Info().Error)

	tk, err = m.Start(OpBalance, func(context.Context, func(string)) (any, error) {
		panic("bad")
	})
	require.NoError(t, err)
	_, err = tk.Wait()
	assert.ErrorContains(t, err, "task panicked")
	assert.Equal(t, StateFailed, tk.State())
}

func TestTasksAndGet(t *testing.T) {
	m := NewManager(context.Background(), nil)
	assert.Equal(t, StateIdle, m.State(OpGenerate))

	tk, err := m.Start(OpGenerate, func(context.Context, func(string)) (any, error) { return 1, nil })
	require.NoError(t, err)
	_, _ = tk.Wait()

	got, ok := m.Get(tk.ID)
	require.True(t, ok)
	assert.Same(t, tk, got)

	infos := m.Tasks()
	require.Len(t, infos, 1)
	assert.Equal(t, tk.ID, infos[0].ID)
	assert.Equal(t, StateDone, infos[0].State)
	assert.Equal(t, 1, infos[0].Result)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManagerContextCancelsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, nil)
	tk, err := m.Start(OpBalance, func(ctx context.Context, _ func(string)) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	cancel()
	_, err = tk.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}

// A subscriber that falls behind a burst of progress events still sees the task end.
func TestFinishReachesSlowSubscriber(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()
	m := NewManager(context.Background(), bus)

	tk, err := m.Start(OpGenerate, func(_ context.Context, progress func(string)) (any, error) {
		for i := 0; i < 1000; i++ {
			progress(fmt.Sprintf("Generated wallet %d/1000", i+1))
		}
		return "batch", nil
	})
	require.NoError(t, err)

	var sawDone, sawResult bool
	deadline := time.After(10 * time.Second)
	for !sawResult {
		select {
		case ev := <-sub:
			time.Sleep(500 * time.Microsecond)
			if ev.Type == events.EventState && ev.Message == string(StateDone) {
				sawDone = true
			}
			if ev.Type == events.EventResult {
				sawResult = true
				assert.Equal(t, "batch", ev.Data)
			}
		case <-deadline:
			t.Fatalf("task end never delivered (done=%v)", sawDone)
		}
	}
	assert.True(t, sawDone)
	assert.Equal(t, StateDone, tk.State())
}

func TestPruneSkipsRunningTasks(t *testing.T) {
	m := NewManager(context.Background(), nil)
	release := make(chan struct{})
	defer close(release)

	long, err := m.Start(OpSupply, func(context.Context, func(string)) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	for i := 0; i < MaxHistory+5; i++ {
		tk, err := m.Start(OpBalance, func(context.Context, func(string)) (any, error) { return i, nil })
		require.NoError(t, err)
		_, _ = tk.Wait()
	}

	infos := m.Tasks()
	assert.Len(t, infos, MaxHistory)
	assert.Equal(t, long.ID, infos[0].ID, "the running task stays at the head of the history")
	_, ok := m.Get(long.ID)
	assert.True(t, ok)
	assert.True(t, m.Busy(OpSupply))
}
