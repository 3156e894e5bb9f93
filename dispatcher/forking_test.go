package dispatcher

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/HildaM/GoMux/shutdown"
	tcpimpl "github.com/HildaM/GoMux/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var forkResponse = string(tcpimpl.BuildResponse(forkBody))

func TestForkingGoroutineUnit(t *testing.T) {
	h := startServer(t, func(ep *tcpimpl.Endpoint, ctl *shutdown.Controller) (Dispatcher, error) {
		handler := tcpimpl.MakeResponseHandler(forkBody, tcpimpl.DefaultBufferSize)
		return NewForking(ep, NewGoroutineSpawner(handler, time.Second), ctl)
	})
	defer h.stop(t)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := fetch(h.addr(), "GET / HTTP/1.1\r\n\r\n")
			if err == nil && resp != forkResponse {
				err = errors.New("unexpected response: " + resp)
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	for err := range results {
		assert.NoError(t, err)
	}
}

func TestForkingInFlightCompletesOnShutdown(t *testing.T) {
	h := startServer(t, func(ep *tcpimpl.Endpoint, ctl *shutdown.Controller) (Dispatcher, error) {
		handler := tcpimpl.MakeResponseHandler(forkBody, tcpimpl.DefaultBufferSize)
		return NewForking(ep, NewGoroutineSpawner(handler, timeout), ctl)
	})

	conn, err := net.Dial("tcp", h.addr())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(timeout)))

	// 连接已交给执行单元后才发送数据
	time.Sleep(100 * time.Millisecond)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = conn.Write([]byte("late"))
	}()
	h.stop(t)

	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, forkResponse, string(resp))
}

func TestForkingProcessUnitReapsWorkers(t *testing.T) {
	var spawner *ProcessSpawner
	h := startServer(t, func(ep *tcpimpl.Endpoint, ctl *shutdown.Controller) (Dispatcher, error) {
		spawner = NewProcessSpawner(os.Args[0], []string{os.Args[0]}, append(os.Environ(), workerEnv+"=1"))
		return NewForking(ep, spawner, ctl)
	})

	for i := 0; i < 10; i++ {
		assert.Equal(t, forkResponse, request(t, h.addr(), "GET / HTTP/1.1\r\n\r\n"))
	}

	// 提前关闭的对端不会影响 worker 退出
	conn, err := net.Dial("tcp", h.addr())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return spawner.Reaper().Outstanding() == 0
	}, timeout, tick)
	_, err = unix.Wait4(-1, nil, unix.WNOHANG, nil)
	assert.True(t, errors.Is(err, unix.ECHILD), "no exited worker may remain unreaped: %v", err)

	h.stop(t)
}

func TestReaperSweepNeverBlocks(t *testing.T) {
	r := NewReaper()
	done := make(chan int, 1)
	go func() { done <- r.Sweep() }()
	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(timeout):
		t.Fatal("sweep blocked without children")
	}
	assert.Zero(t, r.Outstanding())
}

func TestParseWorkerCommand(t *testing.T) {
	path, args, err := ParseWorkerCommand(`sh -c "exit 0"`)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, []string{"sh", "-c", "exit 0"}, args)

	_, _, err = ParseWorkerCommand("cat | sh")
	assert.Error(t, err)

	_, _, err = ParseWorkerCommand("echo `id`")
	assert.Error(t, err)

	_, _, err = ParseWorkerCommand("")
	assert.Error(t, err)
}
