package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/HildaM/GoMux/config"
	"github.com/HildaM/GoMux/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestListenAndServeModes(t *testing.T) {
	for _, mode := range []string{config.ModeSelect, config.ModeEpoll, config.ModeFork} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Bind = "127.0.0.1"
			cfg.Port = freePort(t)
			cfg.Mode = mode
			cfg.ForkUnit = config.UnitGoroutine

			ctl := shutdown.NewController()
			done := make(chan error, 1)
			go func() { done <- ListenAndServe(cfg, ctl) }()

			addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
			var conn net.Conn
			require.Eventually(t, func() bool {
				var err error
				conn, err = net.Dial("tcp", addr)
				return err == nil
			}, 2*time.Second, 10*time.Millisecond)

			_, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
			require.NoError(t, err)
			resp, err := io.ReadAll(conn)
			require.NoError(t, err)
			_ = conn.Close()
			assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\nHello from "+mode+" server!\n", string(resp))

			ctl.Trigger()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not shut down")
			}
		})
	}
}

func TestListenAndServeRejectsPort(t *testing.T) {
	cfg := config.Defaults()
	cfg.Port = 65536
	err := ListenAndServe(cfg, shutdown.NewController())
	assert.True(t, errors.Is(err, config.ErrInvalidPort))
}

func TestWorkerArgs(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeFork
	args := WorkerArgs("/bin/gomux", cfg)
	assert.Equal(t, []string{"/bin/gomux", "worker", "--body", "Hello from fork server!",
		"--read-buffer", "4096", "--log-level", "info"}, args)
}
