package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Settings 日志文件配置，文件名为 Path/Name-时间Ext
type Settings struct {
	Path       string `yaml:"path"`
	Name       string `yaml:"name"`
	Ext        string `yaml:"ext"`
	TimeFormat string `yaml:"time-format"`
	Level      string `yaml:"level"`
}

// Fields 结构化日志字段
type Fields = logrus.Fields

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Setup 初始化日志：同时输出到终端和日志文件
func Setup(settings *Settings) error {
	if settings.Level != "" {
		level, err := logrus.ParseLevel(settings.Level)
		if err != nil {
			return err
		}
		std.SetLevel(level)
	}

	console, formatter := consoleOutput()
	std.SetFormatter(formatter)
	if settings.Path == "" {
		std.SetOutput(console)
		return nil
	}

	fileName := fmt.Sprintf("%s-%s%s", settings.Name, time.Now().Format(settings.TimeFormat), settings.Ext)
	file, err := mustOpen(fileName, settings.Path)
	if err != nil {
		return fmt.Errorf("logging.Setup err: %w", err)
	}
	std.SetOutput(io.MultiWriter(console, file))
	return nil
}

// consoleOutput 终端下使用彩色输出
func consoleOutput() (io.Writer, logrus.Formatter) {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout(), &logrus.TextFormatter{ForceColors: true, FullTimestamp: true}
	}
	return os.Stdout, &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
}

func mustOpen(fileName, dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, fileName), os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
}

// SetOutput 替换输出，测试时使用
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

func WithFields(fields Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func Debug(v ...interface{}) {
	std.Debug(v...)
}

func Info(v ...interface{}) {
	std.Info(v...)
}

func Warn(v ...interface{}) {
	std.Warn(v...)
}

func Error(v ...interface{}) {
	std.Error(v...)
}

func Fatal(v ...interface{}) {
	std.Fatal(v...)
}
