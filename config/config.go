package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeFork   = "fork"
	ModeSelect = "select"
	ModeEpoll  = "epoll"

	UnitProcess   = "process"
	UnitGoroutine = "goroutine"
)

var ErrInvalidPort = errors.New("invalid port")

// ServerProperties defines global config properties
type ServerProperties struct {
	Bind          string        `cfg:"bind" yaml:"bind"`                     // 绑定IP
	Port          int           `cfg:"port" yaml:"port"`                     // 绑定端口
	Mode          string        `cfg:"mode" yaml:"mode"`                     // 多路复用策略 fork/select/epoll
	Backlog       int           `cfg:"backlog" yaml:"backlog"`               // listen 队列长度
	MaxEvents     int           `cfg:"max-events" yaml:"max-events"`         // 每次 wait 最多返回的事件数
	ReadBuffer    int           `cfg:"read-buffer" yaml:"read-buffer"`       // 单次读取缓冲区
	Body          string        `cfg:"body" yaml:"body"`                     // 响应正文，为空时按模式生成
	ForkUnit      string        `cfg:"fork-unit" yaml:"fork-unit"`           // fork 模式下的执行单元 process/goroutine
	WorkerCommand string        `cfg:"worker-command" yaml:"worker-command"` // 自定义 worker 命令行
	GracePeriod   time.Duration `cfg:"grace-period" yaml:"grace-period"`     // 关闭时等待进行中连接的时间
	LogPath       string        `cfg:"log-path" yaml:"log-path"`
	LogLevel      string        `cfg:"log-level" yaml:"log-level"`
}

// 全局配置类
var Properties *ServerProperties

func init() {
	Properties = Defaults()
}

// Defaults 默认配置
func Defaults() *ServerProperties {
	return &ServerProperties{
		Bind:        "0.0.0.0",
		Port:        8080,
		Mode:        ModeEpoll,
		Backlog:     16,
		MaxEvents:   1024,
		ReadBuffer:  4096,
		ForkUnit:    UnitProcess,
		GracePeriod: 5 * time.Second,
		LogLevel:    "info",
	}
}

// ResponseBody 未配置正文时按模式生成
func (p *ServerProperties) ResponseBody() string {
	if p.Body != "" {
		return p.Body
	}
	return fmt.Sprintf("Hello from %s server!", p.Mode)
}

// Validate 检查启动前必须满足的约束
func (p *ServerProperties) Validate() error {
	if err := ValidatePort(p.Port); err != nil {
		return err
	}
	switch p.Mode {
	case ModeFork, ModeSelect, ModeEpoll:
	default:
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	switch p.ForkUnit {
	case UnitProcess, UnitGoroutine:
	default:
		return fmt.Errorf("unknown fork unit %q", p.ForkUnit)
	}
	if p.Backlog <= 0 || p.MaxEvents <= 0 || p.ReadBuffer <= 1 {
		return errors.New("backlog, max-events and read-buffer must be positive")
	}
	return nil
}

// ValidatePort 端口必须在 1-65535 之间
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

// ParsePort 解析命令行中的端口参数
func ParsePort(arg string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPort, arg)
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

// parse 解析 gomux.conf 文件
/*
gomux.conf 文件格式：
	bind 0.0.0.0
	port 8080
	mode select
*/
func parse(src io.Reader) (*ServerProperties, error) {
	config := Defaults()

	rawMap := make(map[string]string)
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		pivot := strings.IndexAny(line, " ")
		if pivot > 0 && pivot < len(line)-1 {
			key := line[0:pivot]
			value := strings.Trim(line[pivot+1:], " ")
			rawMap[strings.ToLower(key)] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// 使用反射填充 config
	t := reflect.TypeOf(config)
	v := reflect.ValueOf(config)
	n := t.Elem().NumField()
	for i := 0; i < n; i++ {
		field := t.Elem().Field(i)
		fieldVal := v.Elem().Field(i)

		key, ok := field.Tag.Lookup("cfg")
		if !ok || strings.TrimSpace(key) == "" {
			key = field.Name
		}

		val, ok := rawMap[strings.ToLower(key)]
		if !ok {
			continue
		}
		if field.Type == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			fieldVal.SetInt(int64(d))
			continue
		}
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(val)
		case reflect.Int:
			intVal, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			fieldVal.SetInt(intVal)
		}
	}

	return config, nil
}

func parseYAML(src io.Reader) (*ServerProperties, error) {
	config := Defaults()
	if err := yaml.NewDecoder(src).Decode(config); err != nil && err != io.EOF {
		return nil, err
	}
	return config, nil
}

// Load 读取配置文件，.yaml/.yml 使用 YAML，其他按 conf 格式解析
func Load(configFileName string) (*ServerProperties, error) {
	file, err := os.Open(configFileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(configFileName)) {
	case ".yaml", ".yml":
		return parseYAML(file)
	default:
		return parse(file)
	}
}

// SetupConfig 读取配置文件并替换全局配置
func SetupConfig(configFileName string) error {
	p, err := Load(configFileName)
	if err != nil {
		return err
	}
	Properties = p
	return nil
}
