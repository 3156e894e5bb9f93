//go:build linux

package poller

import (
	"errors"

	"golang.org/x/sys/unix"
)

// waker 基于 eventfd，写入后对应 fd 变为可读
type waker struct {
	fd int
}

func newWaker() (*waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &waker{fd: fd}, nil
}

func (w *waker) wake() error {
	buf := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	for {
		_, err := unix.Write(w.fd, buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			// 计数器已满，说明已经处于唤醒状态
			return nil
		}
		return err
	}
}

func (w *waker) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

func (w *waker) close() error {
	return unix.Close(w.fd)
}
