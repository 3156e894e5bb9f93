package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/lib/sync/atomic"
)

// Controller 进程级关闭标志。标志只会被置位一次，之后不再复位；
// 置位后唤醒所有阻塞在 wait 上的事件循环
type Controller struct {
	stopping atomic.Boolean

	mu    sync.Mutex
	hooks []func()

	sigCh chan os.Signal
	once  sync.Once
}

func NewController() *Controller {
	return &Controller{}
}

// Stopping 事件循环每轮检查
func (c *Controller) Stopping() bool {
	return c.stopping.Get()
}

// OnShutdown 注册唤醒回调；已经在关闭时立即执行
func (c *Controller) OnShutdown(fn func()) {
	c.mu.Lock()
	if !c.stopping.Get() {
		c.hooks = append(c.hooks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Trigger 置位关闭标志，只有第一次调用返回 true
func (c *Controller) Trigger() bool {
	c.mu.Lock()
	if !c.stopping.SetOnce() {
		c.mu.Unlock()
		return false
	}
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return true
}

// Notify 收到任一信号即触发关闭，默认 SIGINT/SIGTERM
func (c *Controller) Notify(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, sigs...)
	go func() {
		for sig := range c.sigCh {
			if c.Trigger() {
				logger.Info("received " + sig.String() + ", shutting down...")
			}
		}
	}()
}

// Stop 取消信号监听
func (c *Controller) Stop() {
	c.once.Do(func() {
		if c.sigCh != nil {
			signal.Stop(c.sigCh)
			close(c.sigCh)
		}
	})
}

// IgnoreTermination worker 与父进程同属一个进程组，终端的 Ctrl+C 不应打断进行中的连接
func IgnoreTermination() {
	signal.Ignore(syscall.SIGINT, syscall.SIGTERM)
}

// IgnoreBrokenPipe 对端已关闭时写入不应终止进程
func IgnoreBrokenPipe() {
	signal.Ignore(syscall.SIGPIPE)
}
