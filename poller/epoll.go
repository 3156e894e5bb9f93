//go:build linux

package poller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Epoll 通知式实现，每轮开销与就绪 fd 数量成正比
type Epoll struct {
	epfd     int
	waker    *waker
	registry *Registry
	events   []unix.EpollEvent

	lastEvents int
}

func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	w, err := newWaker()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w.fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.fd, &ev); err != nil {
		_ = w.close()
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl: %w", err)
	}
	return &Epoll{
		epfd:     epfd,
		waker:    w,
		registry: NewRegistry(),
	}, nil
}

func (p *Epoll) Register(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.registry.Add(fd)
	return nil
}

func (p *Epoll) Deregister(fd int) error {
	if !p.registry.Remove(fd) {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *Epoll) Wait(limit int) ([]int, error) {
	if limit <= 0 {
		limit = 1
	}
	if cap(p.events) < limit {
		p.events = make([]unix.EpollEvent, limit)
	}
	events := p.events[:limit]

	n, err := unix.EpollWait(p.epfd, events, -1)
	if err != nil {
		return nil, err
	}
	p.lastEvents = n

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == p.waker.fd {
			p.waker.drain()
			continue
		}
		ready = append(ready, fd)
	}
	return ready, nil
}

// LastEvents 上一次 Wait 处理的事件数
func (p *Epoll) LastEvents() int {
	return p.lastEvents
}

func (p *Epoll) Wake() error {
	return p.waker.wake()
}

func (p *Epoll) Registered() []int {
	return p.registry.Sorted()
}

func (p *Epoll) Close() error {
	errW := p.waker.close()
	if err := unix.Close(p.epfd); err != nil {
		return err
	}
	return errW
}
