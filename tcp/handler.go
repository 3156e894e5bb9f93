package tcp

import (
	"errors"
	"io"

	"github.com/HildaM/GoMux/interface/tcp"
	"github.com/HildaM/GoMux/lib/logger"
	"golang.org/x/sys/unix"
)

const DefaultBufferSize = 4096

// ResponseHandler 对任何输入都返回同一个 HTTP/1.1 响应
type ResponseHandler struct {
	response []byte
	bufSize  int
}

// MakeResponseHandler body 为响应正文，末尾自动追加换行
func MakeResponseHandler(body string, bufSize int) *ResponseHandler {
	if bufSize <= 1 {
		bufSize = DefaultBufferSize
	}
	return &ResponseHandler{
		response: BuildResponse(body),
		bufSize:  bufSize,
	}
}

// BuildResponse 固定的 200 响应，不带 Content-Length，由关闭连接表示结束
func BuildResponse(body string) []byte {
	return []byte("HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		body + "\n")
}

// Service 读一次（最多 bufSize-1 字节，超出部分丢弃），再完整写出响应
func (h *ResponseHandler) Service(fd int) tcp.Outcome {
	buf := make([]byte, h.bufSize)
	n, err := readOnce(fd, buf[:h.bufSize-1])
	if err != nil {
		logger.WithFields(logger.Fields{"fd": fd}).Warn("read: ", err)
		return tcp.IOError
	}
	if n == 0 {
		logger.WithFields(logger.Fields{"fd": fd}).Debug("connection closed by peer")
		return tcp.PeerClosed
	}

	if err := WriteAll(fd, h.response); err != nil {
		logger.WithFields(logger.Fields{"fd": fd}).Warn("write: ", err)
		return tcp.IOError
	}
	return tcp.Responded
}

func readOnce(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// WriteAll 处理被打断和部分写入，从已写出的位置继续
func WriteAll(fd int, data []byte) error {
	off := 0
	for off < len(data) {
		n, err := unix.Write(fd, data[off:])
		if n > 0 {
			off += n
			continue
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err == nil {
			return io.ErrShortWrite
		}
		return err
	}
	return nil
}
