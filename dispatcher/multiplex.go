package dispatcher

import (
	"sync/atomic"

	"github.com/HildaM/GoMux/interface/tcp"
	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/poller"
	tcpimpl "github.com/HildaM/GoMux/tcp"
	"golang.org/x/sys/unix"
)

// Multiplexer 单线程事件循环：监听 socket 就绪时 accept 并注册新连接，
// 连接就绪时处理一次后立即注销并关闭。扫描式与通知式只在 poller 上不同
type Multiplexer struct {
	active int64

	name     string
	endpoint *tcpimpl.Endpoint
	handler  tcp.Handler
	loop     *eventLoop
	serviced map[tcp.Outcome]int
}

func NewMultiplexer(name string, endpoint *tcpimpl.Endpoint, p poller.Poller, handler tcp.Handler,
	flag ShutdownFlag, batch int) *Multiplexer {
	return &Multiplexer{
		name:     name,
		endpoint: endpoint,
		handler:  handler,
		loop:     newEventLoop(p, endpoint.FD(), flag, batch),
		serviced: make(map[tcp.Outcome]int),
	}
}

// NewScanning 基于 select 的线性扫描
func NewScanning(endpoint *tcpimpl.Endpoint, handler tcp.Handler, flag ShutdownFlag) (*Multiplexer, error) {
	p, err := poller.NewScan()
	if err != nil {
		return nil, err
	}
	return NewMultiplexer("select", endpoint, p, handler, flag, DefaultBatch), nil
}

// NewNotification 基于 epoll 的就绪通知
func NewNotification(endpoint *tcpimpl.Endpoint, handler tcp.Handler, flag ShutdownFlag, batch int) (*Multiplexer, error) {
	p, err := poller.NewEpoll()
	if err != nil {
		return nil, err
	}
	return NewMultiplexer("epoll", endpoint, p, handler, flag, batch), nil
}

func (m *Multiplexer) Serve() error {
	logger.Info(m.name + " dispatcher started")
	return m.loop.run(m.accept, m.service)
}

func (m *Multiplexer) accept() {
	conn, err := m.endpoint.AcceptOne()
	if err != nil {
		logAcceptError(err)
		return
	}
	if err := m.loop.poller.Register(conn.FD); err != nil {
		logger.WithFields(logger.Fields{"fd": conn.FD}).Warn("register: ", err)
		_ = unix.Close(conn.FD)
		return
	}
	atomic.AddInt64(&m.active, 1)
	logger.WithFields(logger.Fields{"fd": conn.FD}).Debug("accept link")
}

func (m *Multiplexer) service(fd int) {
	outcome := m.handler.Service(fd)
	m.loop.release(fd)
	atomic.AddInt64(&m.active, -1)
	m.serviced[outcome]++
	logger.WithFields(logger.Fields{"fd": fd, "outcome": outcome}).Debug("connection done")
}

// Active 已注册、尚未处理的连接数
func (m *Multiplexer) Active() int {
	return int(atomic.LoadInt64(&m.active))
}

// Serviced 各种结果的计数，只能在 Serve 返回后读取
func (m *Multiplexer) Serviced(outcome tcp.Outcome) int {
	return m.serviced[outcome]
}

func (m *Multiplexer) Close() error {
	return m.loop.close()
}
