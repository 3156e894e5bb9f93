package poller

import "sort"

// Registry 记录正在被监听的 fd。只在事件循环所在的 goroutine 中访问，不加锁
type Registry struct {
	members   map[int]struct{}
	highWater int
}

func NewRegistry() *Registry {
	return &Registry{
		members:   make(map[int]struct{}),
		highWater: -1,
	}
}

// Add 重复添加返回 false
func (r *Registry) Add(fd int) bool {
	if _, ok := r.members[fd]; ok {
		return false
	}
	r.members[fd] = struct{}{}
	if fd > r.highWater {
		r.highWater = fd
	}
	return true
}

func (r *Registry) Remove(fd int) bool {
	if _, ok := r.members[fd]; !ok {
		return false
	}
	delete(r.members, fd)
	return true
}

func (r *Registry) Contains(fd int) bool {
	_, ok := r.members[fd]
	return ok
}

func (r *Registry) Len() int {
	return len(r.members)
}

// HighWater 注册过的最大 fd，移除后不回退；没有注册过时为 -1
func (r *Registry) HighWater() int {
	return r.highWater
}

// Each 按 fd 升序遍历，fn 返回 false 时停止
func (r *Registry) Each(fn func(fd int) bool) {
	for _, fd := range r.Sorted() {
		if !fn(fd) {
			return
		}
	}
}

func (r *Registry) Sorted() []int {
	fds := make([]int, 0, len(r.members))
	for fd := range r.members {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}
