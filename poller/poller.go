// Package poller 提供就绪通知能力。事件循环只依赖 Poller 接口，
// 扫描式（select）与通知式（epoll）两种实现可以互换。
package poller

import "errors"

// ErrDescriptorRange fd 超出 select 能监听的范围
var ErrDescriptorRange = errors.New("descriptor exceeds FD_SETSIZE")

// Poller 监听一组 fd 的读就绪
type Poller interface {
	// Register 开始监听 fd 的读事件
	Register(fd int) error
	// Deregister 停止监听，必须在关闭 fd 之前调用
	Deregister(fd int) error
	// Wait 阻塞直到至少一个 fd 就绪或被 Wake 唤醒，最多返回 limit 个 fd。
	// 被信号打断时返回 unix.EINTR
	Wait(limit int) ([]int, error)
	// Wake 让阻塞中的 Wait 立即返回
	Wake() error
	// Registered 当前监听的全部 fd，升序
	Registered() []int
	Close() error
}
