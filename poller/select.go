//go:build linux

package poller

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const fdSetSize = int(unsafe.Sizeof(unix.FdSet{})) * 8

// Scan 扫描式实现：每轮从 0 线性扫描到注册过的最大 fd，
// 开销只与最大 fd 有关，与活跃连接数无关
type Scan struct {
	waker    *waker
	registry *Registry

	lastScan int
}

func NewScan() (*Scan, error) {
	w, err := newWaker()
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	if w.fd >= fdSetSize {
		_ = w.close()
		return nil, ErrDescriptorRange
	}
	return &Scan{
		waker:    w,
		registry: NewRegistry(),
	}, nil
}

func (p *Scan) Register(fd int) error {
	if fd < 0 || fd >= fdSetSize {
		return ErrDescriptorRange
	}
	p.registry.Add(fd)
	return nil
}

func (p *Scan) Deregister(fd int) error {
	p.registry.Remove(fd)
	return nil
}

func (p *Scan) Wait(limit int) ([]int, error) {
	var set unix.FdSet
	set.Zero()
	set.Set(p.waker.fd)
	p.registry.Each(func(fd int) bool {
		set.Set(fd)
		return true
	})

	maxFD := p.registry.HighWater()
	if p.waker.fd > maxFD {
		maxFD = p.waker.fd
	}
	if _, err := unix.Select(maxFD+1, &set, nil, nil, nil); err != nil {
		return nil, err
	}

	var ready []int
	p.lastScan = 0
	for fd := 0; fd <= maxFD; fd++ {
		p.lastScan++
		if !set.IsSet(fd) {
			continue
		}
		if fd == p.waker.fd {
			p.waker.drain()
			continue
		}
		if limit > 0 && len(ready) >= limit {
			continue
		}
		ready = append(ready, fd)
	}
	return ready, nil
}

// LastScan 上一次 Wait 检查过的 fd 数量
func (p *Scan) LastScan() int {
	return p.lastScan
}

func (p *Scan) Wake() error {
	return p.waker.wake()
}

func (p *Scan) Registered() []int {
	return p.registry.Sorted()
}

func (p *Scan) Close() error {
	return p.waker.close()
}
