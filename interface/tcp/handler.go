package tcp

// Outcome 一次请求处理的结果
type Outcome int

const (
	Responded  Outcome = iota // 已写出完整响应
	PeerClosed                // 对端在发送数据前关闭
	IOError                   // 读或写失败
)

func (o Outcome) String() string {
	switch o {
	case Responded:
		return "responded"
	case PeerClosed:
		return "peer-closed"
	case IOError:
		return "io-error"
	}
	return "unknown"
}

// Handler 是应用服务器的抽象：对一个就绪连接读一次、写一次。
// 连接的关闭由调用方负责，Service 不会关闭 fd
type Handler interface {
	Service(fd int) Outcome
}
