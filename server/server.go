package server

import (
	"fmt"
	"os"
	"strconv"

	"github.com/HildaM/GoMux/config"
	"github.com/HildaM/GoMux/dispatcher"
	"github.com/HildaM/GoMux/interface/tcp"
	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/shutdown"
	tcpimpl "github.com/HildaM/GoMux/tcp"
)

// WorkerArgs self-exec 时 worker 子命令的参数
func WorkerArgs(exe string, cfg *config.ServerProperties) []string {
	return []string{exe, "worker",
		"--body", cfg.ResponseBody(),
		"--read-buffer", strconv.Itoa(cfg.ReadBuffer),
		"--log-level", cfg.LogLevel,
	}
}

// MakeDispatcher 按模式创建事件循环
func MakeDispatcher(cfg *config.ServerProperties, ep *tcpimpl.Endpoint, handler tcp.Handler,
	flag dispatcher.ShutdownFlag) (dispatcher.Dispatcher, error) {
	switch cfg.Mode {
	case config.ModeSelect:
		return dispatcher.NewScanning(ep, handler, flag)
	case config.ModeEpoll:
		return dispatcher.NewNotification(ep, handler, flag, cfg.MaxEvents)
	case config.ModeFork:
		spawner, err := makeSpawner(cfg, handler)
		if err != nil {
			return nil, err
		}
		return dispatcher.NewForking(ep, spawner, flag)
	}
	return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
}

func makeSpawner(cfg *config.ServerProperties, handler tcp.Handler) (dispatcher.Spawner, error) {
	if cfg.ForkUnit == config.UnitGoroutine {
		return dispatcher.NewGoroutineSpawner(handler, cfg.GracePeriod), nil
	}
	if cfg.WorkerCommand != "" {
		path, args, err := dispatcher.ParseWorkerCommand(cfg.WorkerCommand)
		if err != nil {
			return nil, fmt.Errorf("worker-command: %w", err)
		}
		return dispatcher.NewProcessSpawner(path, args, os.Environ()), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return dispatcher.NewProcessSpawner(exe, WorkerArgs(exe, cfg), os.Environ()), nil
}

// ListenAndServeWithSignal 绑定端口并运行事件循环，SIGINT/SIGTERM 时优雅退出
func ListenAndServeWithSignal(cfg *config.ServerProperties) error {
	ctl := shutdown.NewController()
	ctl.Notify()
	defer ctl.Stop()
	return ListenAndServe(cfg, ctl)
}

// ListenAndServe 运行直到 ctl 被触发。启动阶段的错误都是致命的
func ListenAndServe(cfg *config.ServerProperties, ctl *shutdown.Controller) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	shutdown.IgnoreBrokenPipe()

	ep, err := tcpimpl.BindAndListen(cfg.Bind, cfg.Port, cfg.Backlog)
	if err != nil {
		return err
	}
	defer func() {
		_ = ep.Close()
	}()

	handler := tcpimpl.MakeResponseHandler(cfg.ResponseBody(), cfg.ReadBuffer)
	d, err := MakeDispatcher(cfg, ep, handler, ctl)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("close dispatcher: ", err)
		}
	}()

	logger.Info(fmt.Sprintf("bind: %s:%d, mode %s, pid %d, start listening...", cfg.Bind, ep.Port(), cfg.Mode, os.Getpid()))
	if err := d.Serve(); err != nil {
		return err
	}
	logger.Info("shutting down server")
	return nil
}
