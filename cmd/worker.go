package cmd

import (
	"os"

	"github.com/HildaM/GoMux/dispatcher"
	"github.com/HildaM/GoMux/interface/tcp"
	"github.com/HildaM/GoMux/lib/logger"
	"github.com/HildaM/GoMux/shutdown"
	tcpimpl "github.com/HildaM/GoMux/tcp"
	"github.com/spf13/cobra"
)

// newWorkerCommand fork 模式下的执行单元：处理 fd 3 上的连接后退出
func newWorkerCommand() *cobra.Command {
	var (
		body       string
		readBuffer int
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Service the connection inherited on fd 3 and exit",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Setup(&logger.Settings{Level: logLevel}); err != nil {
				return err
			}
			shutdown.IgnoreTermination()
			shutdown.IgnoreBrokenPipe()
			handler := tcpimpl.MakeResponseHandler(body, readBuffer)
			outcome := dispatcher.ServeInherited(dispatcher.WorkerFD, handler)
			logger.WithFields(logger.Fields{"pid": os.Getpid(), "outcome": outcome}).Debug("worker done")
			if outcome == tcp.IOError {
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&body, "body", "Hello from fork server!", "response body")
	cmd.Flags().IntVar(&readBuffer, "read-buffer", tcpimpl.DefaultBufferSize, "read buffer size")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
