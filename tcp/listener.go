package tcp

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// BindError 启动阶段 socket/setsockopt/bind/listen 失败，均为致命错误
type BindError struct {
	Op  string
	Err error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// AcceptError 单次 accept 失败，不影响监听
type AcceptError struct {
	Err error
}

func (e *AcceptError) Error() string {
	return "accept: " + e.Err.Error()
}

func (e *AcceptError) Unwrap() error {
	return e.Err
}

// Transient 被信号打断，调用方应重试
func (e *AcceptError) Transient() bool {
	return errors.Is(e.Err, unix.EINTR)
}

// Benign 队列已空或连接在 accept 前被对端重置，不值得告警
func (e *AcceptError) Benign() bool {
	return errors.Is(e.Err, unix.EAGAIN) || errors.Is(e.Err, unix.ECONNABORTED)
}

// Endpoint 监听中的 IPv4 socket
type Endpoint struct {
	fd      int
	port    int
	backlog int
}

// Connection 一个已 accept 的连接
type Connection struct {
	FD   int
	Peer unix.Sockaddr
}

// BindAndListen 创建 IPv4 socket，开启 SO_REUSEADDR 并开始监听。port 为 0 时由内核分配
func BindAndListen(bind string, port, backlog int) (*Endpoint, error) {
	addr := &unix.SockaddrInet4{Port: port}
	if bind != "" {
		ip, err := parseIPv4(bind)
		if err != nil {
			return nil, &BindError{Op: "bind", Err: err}
		}
		addr.Addr = ip
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &BindError{Op: "socket", Err: err}
	}
	// 允许重启时复用处于 TIME_WAIT 的端口
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Op: "setsockopt", Err: err}
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Op: "bind", Err: err}
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Op: "listen", Err: err}
	}
	// 就绪后连接可能已被对端重置，非阻塞避免 accept 卡住事件循环
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Op: "listen", Err: err}
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Op: "getsockname", Err: err}
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		port = in4.Port
	}
	return &Endpoint{fd: fd, port: port, backlog: backlog}, nil
}

func parseIPv4(s string) ([4]byte, error) {
	var ip [4]byte
	v4 := net.ParseIP(s).To4()
	if v4 == nil {
		return ip, fmt.Errorf("invalid IPv4 address %q", s)
	}
	copy(ip[:], v4)
	return ip, nil
}

func (e *Endpoint) FD() int {
	return e.fd
}

func (e *Endpoint) Port() int {
	return e.port
}

// AcceptOne 接收一个连接，被信号打断时重试。
// 新 fd 为阻塞模式并带 close-on-exec，不会泄漏给 fork 出的 worker
func (e *Endpoint) AcceptOne() (*Connection, error) {
	for {
		fd, sa, err := unix.Accept4(e.fd, unix.SOCK_CLOEXEC)
		if err != nil {
			acceptErr := &AcceptError{Err: err}
			if acceptErr.Transient() {
				continue
			}
			return nil, acceptErr
		}
		return &Connection{FD: fd, Peer: sa}, nil
	}
}

func (e *Endpoint) Close() error {
	if e.fd < 0 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	return err
}
