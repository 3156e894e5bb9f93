package dispatcher

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/HildaM/GoMux/lib/logger"
	"golang.org/x/sys/unix"
)

// Reaper 收到 SIGCHLD 后以非阻塞方式回收所有已退出的子进程
type Reaper struct {
	spawned int64
	reaped  int64

	sigCh chan os.Signal
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewReaper() *Reaper {
	return &Reaper{
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
}

func (r *Reaper) Start() {
	signal.Notify(r.sigCh, syscall.SIGCHLD)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.sigCh:
				r.Sweep()
			case <-r.done:
				return
			}
		}
	}()
}

// Add 在 fork 之前计数，保证 Outstanding 不会为负
func (r *Reaper) Add() {
	atomic.AddInt64(&r.spawned, 1)
}

// Cancel fork 失败时撤销计数
func (r *Reaper) Cancel() {
	atomic.AddInt64(&r.spawned, -1)
}

// Sweep 回收所有已退出的子进程，没有可回收时立即返回
func (r *Reaper) Sweep() int {
	n := 0
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			return n
		}
		n++
		atomic.AddInt64(&r.reaped, 1)
		logger.WithFields(logger.Fields{"pid": pid, "status": status.ExitStatus()}).Debug("worker reaped")
	}
}

// Outstanding 已 fork 但尚未回收的子进程数
func (r *Reaper) Outstanding() int64 {
	return atomic.LoadInt64(&r.spawned) - atomic.LoadInt64(&r.reaped)
}

func (r *Reaper) Stop() {
	r.once.Do(func() {
		signal.Stop(r.sigCh)
		close(r.done)
		r.wg.Wait()
		r.Sweep()
	})
}
