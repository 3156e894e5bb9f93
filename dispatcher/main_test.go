package dispatcher

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/HildaM/GoMux/shutdown"
	tcpimpl "github.com/HildaM/GoMux/tcp"
	"github.com/stretchr/testify/require"
)

const (
	workerEnv = "GOMUX_TEST_WORKER"
	forkBody  = "Hello from fork server!"
	timeout   = 5 * time.Second
	tick      = 10 * time.Millisecond
)

// TestMain 在 worker 模式下，测试二进制本身就是 fork 出的执行单元
func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		shutdown.IgnoreBrokenPipe()
		ServeInherited(WorkerFD, tcpimpl.MakeResponseHandler(forkBody, tcpimpl.DefaultBufferSize))
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type harness struct {
	ep   *tcpimpl.Endpoint
	ctl  *shutdown.Controller
	d    Dispatcher
	done chan error
}

func startServer(t *testing.T, build func(*tcpimpl.Endpoint, *shutdown.Controller) (Dispatcher, error)) *harness {
	t.Helper()
	ep, err := tcpimpl.BindAndListen("127.0.0.1", 0, 16)
	require.NoError(t, err)
	ctl := shutdown.NewController()
	d, err := build(ep, ctl)
	require.NoError(t, err)

	h := &harness{ep: ep, ctl: ctl, d: d, done: make(chan error, 1)}
	go func() { h.done <- d.Serve() }()
	return h
}

func (h *harness) addr() string {
	return fmt.Sprintf("127.0.0.1:%d", h.ep.Port())
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.ctl.Trigger()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(timeout):
		t.Fatal("dispatcher did not stop")
	}
	require.NoError(t, h.d.Close())
	require.NoError(t, h.ep.Close())
}

// fetch 发送 payload 并半关闭写端，读取直到服务端关闭连接
func fetch(addr, payload string) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	if _, err := conn.Write([]byte(payload)); err != nil {
		return "", err
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		return "", err
	}
	resp, err := io.ReadAll(conn)
	return string(resp), err
}

func request(t *testing.T, addr, payload string) string {
	t.Helper()
	resp, err := fetch(addr, payload)
	require.NoError(t, err)
	return resp
}

func countFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}
