// Package dispatcher 决定每个连接何时、在哪个执行单元上被处理。
// 三种实现共享同一约定：每个连接只处理一次，处理后无论结果如何都关闭。
package dispatcher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/poller"
	tcpimpl "github.com/HildaM/GoMux/tcp"
	"golang.org/x/sys/unix"
)

const DefaultBatch = 1024

// Dispatcher 运行事件循环直到关闭标志被置位
type Dispatcher interface {
	Serve() error
	Close() error
}

// ShutdownFlag 事件循环只读取关闭标志，并注册唤醒回调
type ShutdownFlag interface {
	Stopping() bool
	OnShutdown(fn func())
}

// eventLoop 三种实现共用的等待循环。wait 是唯一的阻塞点，
// 被打断或被唤醒后先检查关闭标志，不会在关闭时再次进入 wait
type eventLoop struct {
	poller   poller.Poller
	listenFD int
	flag     ShutdownFlag
	batch    int

	mu     sync.Mutex
	closed bool
}

func newEventLoop(p poller.Poller, listenFD int, flag ShutdownFlag, batch int) *eventLoop {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &eventLoop{
		poller:   p,
		listenFD: listenFD,
		flag:     flag,
		batch:    batch,
	}
}

func (l *eventLoop) run(onAccept func(), onReadable func(fd int)) error {
	if err := l.poller.Register(l.listenFD); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}
	l.flag.OnShutdown(l.wake)

	for !l.flag.Stopping() {
		ready, err := l.poller.Wait(l.batch)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("wait: %w", err)
		}
		for _, fd := range ready {
			if fd == l.listenFD {
				onAccept()
				continue
			}
			onReadable(fd)
		}
	}
	return nil
}

func (l *eventLoop) wake() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if err := l.poller.Wake(); err != nil {
		logger.Warn("wake: ", err)
	}
}

func logAcceptError(err error) {
	var acceptErr *tcpimpl.AcceptError
	if errors.As(err, &acceptErr) && acceptErr.Benign() {
		logger.Debug(err)
		return
	}
	logger.Warn(err)
}

// release 先移出监听集合再关闭，已关闭的 fd 不会再被报告为就绪
func (l *eventLoop) release(fd int) {
	if err := l.poller.Deregister(fd); err != nil {
		logger.WithFields(logger.Fields{"fd": fd}).Warn("deregister: ", err)
	}
	if err := unix.Close(fd); err != nil {
		logger.WithFields(logger.Fields{"fd": fd}).Warn("close: ", err)
	}
}

// close 关闭仍在监听中的连接和 poller，监听 socket 由其所有者关闭
func (l *eventLoop) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	for _, fd := range l.poller.Registered() {
		if fd == l.listenFD {
			_ = l.poller.Deregister(fd)
			continue
		}
		l.release(fd)
	}
	return l.poller.Close()
}
