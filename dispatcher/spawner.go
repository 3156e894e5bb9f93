package dispatcher

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/HildaM/GoMux/interface/tcp"
	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/lib/sync/wait"
	"github.com/cosiner/argv"
	"golang.org/x/sys/unix"
)

// WorkerFD worker 进程中连接所在的 fd
const WorkerFD = 3

// Spawner 创建独立执行单元处理一个连接。
// 调用后 fd 归 Spawner 所有，出错时也由 Spawner 关闭
type Spawner interface {
	Spawn(fd int) error
	Close() error
}

// ServeInherited 执行单元内的全部工作：处理一次，然后关闭
func ServeInherited(fd int, handler tcp.Handler) tcp.Outcome {
	outcome := handler.Service(fd)
	if err := unix.Close(fd); err != nil {
		logger.WithFields(logger.Fields{"fd": fd}).Warn("close: ", err)
	}
	return outcome
}

// ProcessSpawner 为每个连接 fork+exec 一个 worker 进程，连接作为 fd 3 传入。
// 监听 socket 带 close-on-exec，worker 不会持有它
type ProcessSpawner struct {
	Path string
	Args []string
	Env  []string

	reaper *Reaper
}

func NewProcessSpawner(path string, args, env []string) *ProcessSpawner {
	s := &ProcessSpawner{
		Path:   path,
		Args:   args,
		Env:    env,
		reaper: NewReaper(),
	}
	s.reaper.Start()
	return s
}

func (s *ProcessSpawner) Spawn(fd int) error {
	// 父进程的副本在 fork 后立即关闭
	defer unix.Close(fd)

	s.reaper.Add()
	pid, err := syscall.ForkExec(s.Path, s.Args, &syscall.ProcAttr{
		Env:   s.Env,
		Files: []uintptr{0, 1, 2, uintptr(fd)},
	})
	if err != nil {
		s.reaper.Cancel()
		return fmt.Errorf("fork: %w", err)
	}
	logger.WithFields(logger.Fields{"fd": fd, "pid": pid}).Debug("worker forked")
	return nil
}

func (s *ProcessSpawner) Reaper() *Reaper {
	return s.reaper
}

// Close 不等待仍在运行的 worker，它们各自持有连接并独立退出
func (s *ProcessSpawner) Close() error {
	s.reaper.Stop()
	return nil
}

// ParseWorkerCommand 把配置中的命令行解析为 argv，不支持管道和反引号
func ParseWorkerCommand(cmdline string) (string, []string, error) {
	segments, err := argv.Argv(cmdline, func(s string) (string, error) {
		return "", fmt.Errorf("backtick not supported in %q", s)
	}, nil)
	if err != nil {
		return "", nil, err
	}
	if len(segments) != 1 || len(segments[0]) == 0 {
		return "", nil, fmt.Errorf("worker command must be a single command: %q", cmdline)
	}
	args := segments[0]
	path, err := exec.LookPath(args[0])
	if err != nil {
		return "", nil, err
	}
	return path, args, nil
}

// GoroutineSpawner 用 goroutine 作为执行单元，关闭时在宽限期内等待进行中的连接
type GoroutineSpawner struct {
	handler     tcp.Handler
	gracePeriod time.Duration
	inflight    wait.Wait
}

func NewGoroutineSpawner(handler tcp.Handler, gracePeriod time.Duration) *GoroutineSpawner {
	return &GoroutineSpawner{
		handler:     handler,
		gracePeriod: gracePeriod,
	}
}

func (s *GoroutineSpawner) Spawn(fd int) error {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ServeInherited(fd, s.handler)
	}()
	return nil
}

func (s *GoroutineSpawner) Close() error {
	if s.inflight.WaitWithTimeout(s.gracePeriod) {
		logger.Warn("grace period exceeded, leaving connections in flight")
	}
	return nil
}
