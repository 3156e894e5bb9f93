package shutdown

import (
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerOnce(t *testing.T) {
	c := NewController()
	var woke int32
	c.OnShutdown(func() { atomic.AddInt32(&woke, 1) })

	assert.False(t, c.Stopping())
	assert.True(t, c.Trigger())
	assert.False(t, c.Trigger())
	assert.True(t, c.Stopping())
	assert.Equal(t, int32(1), atomic.LoadInt32(&woke))
}

func TestOnShutdownAfterTrigger(t *testing.T) {
	c := NewController()
	c.Trigger()

	called := false
	c.OnShutdown(func() { called = true })
	assert.True(t, called)
}

func TestNotifySignal(t *testing.T) {
	c := NewController()
	c.Notify(syscall.SIGUSR1)
	defer c.Stop()

	woke := make(chan struct{})
	c.OnShutdown(func() { close(woke) })

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
	assert.True(t, c.Stopping())
}

func TestIgnoreTermination(t *testing.T) {
	IgnoreTermination()
	defer signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	time.Sleep(50 * time.Millisecond)
	// 进程仍然存活即说明信号被忽略
	assert.True(t, signal.Ignored(syscall.SIGTERM))
	assert.True(t, signal.Ignored(syscall.SIGINT))
}
