package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"go.uber.org/zap"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
}

func TestManager_Lifecycle(t *testing.T) {
	tr := newFakeTrader("rsi-simple", domain.SignalHold)
	loop := NewLoop(zap.NewNop(), LoopConfig{PollInterval: 2 * time.Millisecond}, nil)
	m := NewManager(zap.NewNop(), tr, loop, WithClock(fixedClock()))

	assert.False(t, m.Running())
	assert.Equal(t, "Strategy rsi-simple is not running. Last stopped on never.", m.Status())

	assert.Equal(t, "Strategy rsi-simple started.", m.Start())
	assert.True(t, m.Running())
	assert.Equal(t, "Strategy rsi-simple is already running.", m.Start())
	assert.Equal(t, "Strategy rsi-simple is running. Started on 2024-05-06 07:08:09.", m.Status())

	require.Eventually(t, func() bool { return tr.fetchCount() >= 2 }, time.Second, time.Millisecond)

	assert.Equal(t, "Strategy rsi-simple stopped.", m.Stop(context.Background()))
	assert.False(t, m.Running())
	assert.Equal(t, "Strategy rsi-simple is not running. Last stopped on 2024-05-06 07:08:09.", m.Status())

	// no cycles after stop returned
	fetches := tr.fetchCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, fetches, tr.fetchCount())

	// restart after stop
	assert.Equal(t, "Strategy rsi-simple started.", m.Start())
	assert.Equal(t, "Strategy rsi-simple stopped.", m.Stop(context.Background()))
}

func TestManager_StopWaitsForInFlightApply(t *testing.T) {
	tr := newSlowApplyTrader("rsi-simple", domain.SignalBuy)
	loop := NewLoop(zap.NewNop(), LoopConfig{PollInterval: time.Hour}, nil)
	m := NewManager(zap.NewNop(), tr, loop)

	require.Equal(t, "Strategy rsi-simple started.", m.Start())
	select {
	case <-tr.entered:
	case <-time.After(time.Second):
		t.Fatal("apply was never reached")
	}

	stopped := make(chan string, 1)
	go func() { stopped <- m.Stop(context.Background()) }()

	select {
	case reply := <-stopped:
		t.Fatalf("stop returned while apply was in flight: %s", reply)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, m.Running())
	assert.Equal(t, 0, tr.appliedCount())

	close(tr.release)
	select {
	case reply := <-stopped:
		assert.Equal(t, "Strategy rsi-simple stopped.", reply)
	case <-time.After(time.Second):
		t.Fatal("stop did not return after apply finished")
	}
	assert.Equal(t, 1, tr.appliedCount())
	assert.False(t, m.Running())
}

func TestManager_StopWhenNotRunning(t *testing.T) {
	tr := newFakeTrader("rsi-delay", domain.SignalHold)
	runner := newBlockingRunner()
	m := NewManager(zap.NewNop(), tr, runner)

	assert.Equal(t, "Strategy rsi-delay is not running.", m.Stop(context.Background()))
	assert.Equal(t, 0, tr.fetchCount())
	assert.False(t, m.Running())
}

func TestManager_StopTimeoutAndStatusDoNotBlock(t *testing.T) {
	tr := newFakeTrader("rsi-simple", domain.SignalHold)
	runner := newBlockingRunner()
	m := NewManager(zap.NewNop(), tr, runner, WithClock(fixedClock()))

	m.Start()
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, "Strategy rsi-simple is stopping.", m.Stop(ctx))

	statusDone := make(chan string, 1)
	go func() { statusDone <- m.Status() }()
	select {
	case s := <-statusDone:
		assert.Contains(t, s, "is running")
	case <-time.After(time.Second):
		t.Fatal("status blocked on the loop")
	}

	// a second start cannot spawn another loop while the first is draining
	assert.Equal(t, "Strategy rsi-simple is already running.", m.Start())

	close(runner.release)
	require.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)
}

func TestManager_RecoversLoopPanic(t *testing.T) {
	tr := newFakeTrader("rsi-simple", domain.SignalHold)
	m := NewManager(zap.NewNop(), tr, panicRunner{}, WithClock(fixedClock()))

	m.Start()
	require.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)

	assert.Equal(t, "Strategy rsi-simple is not running. Last stopped on 2024-05-06 07:08:09. Last error: panic: boom.", m.Status())
	assert.Equal(t, "panic: boom", m.Snapshot().LastError)
}

func TestManager_StatusUsesLocation(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	tr := newFakeTrader("rsi-simple", domain.SignalHold)
	runner := newBlockingRunner()
	m := NewManager(zap.NewNop(), tr, runner, WithClock(fixedClock()), WithLocation(loc))

	m.Start()
	assert.Equal(t, "Strategy rsi-simple is running. Started on 2024-05-06 00:08:09.", m.Status())
	close(runner.release)
}
