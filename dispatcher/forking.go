package dispatcher

import (
	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/poller"
	tcpimpl "github.com/HildaM/GoMux/tcp"
)

// Forking 每个连接交给一个独立的执行单元，父循环只负责 accept
type Forking struct {
	endpoint *tcpimpl.Endpoint
	spawner  Spawner
	loop     *eventLoop
}

func NewForking(endpoint *tcpimpl.Endpoint, spawner Spawner, flag ShutdownFlag) (*Forking, error) {
	p, err := poller.NewEpoll()
	if err != nil {
		return nil, err
	}
	return &Forking{
		endpoint: endpoint,
		spawner:  spawner,
		loop:     newEventLoop(p, endpoint.FD(), flag, DefaultBatch),
	}, nil
}

func (f *Forking) Serve() error {
	logger.Info("fork dispatcher started")
	return f.loop.run(f.accept, func(fd int) {
		logger.WithFields(logger.Fields{"fd": fd}).Warn("unexpected readiness")
	})
}

func (f *Forking) accept() {
	conn, err := f.endpoint.AcceptOne()
	if err != nil {
		logAcceptError(err)
		return
	}
	// Spawn 接管 fd，失败时也由它关闭
	if err := f.spawner.Spawn(conn.FD); err != nil {
		logger.WithFields(logger.Fields{"fd": conn.FD}).Warn(err)
	}
}

// Close 停止 accept 后等待执行单元收尾
func (f *Forking) Close() error {
	err := f.loop.close()
	if errS := f.spawner.Close(); errS != nil && err == nil {
		err = errS
	}
	return err
}
