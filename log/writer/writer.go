package writer

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// Options 输出器配置，Type 为 console 或 file
type Options struct {
	Type string `cfg:"type" def:"console" validate:"omitempty,oneof=console file"`

	// console 输出目标：stdout, stderr
	Target string `cfg:"target" def:"stdout"`

	// file 输出路径
	Path string `cfg:"path"`
}

// NewWriterWithOptions 根据配置创建输出器，options 为 nil 时输出到 stdout
func NewWriterWithOptions(options *Options) (Writer, error) {
	if options == nil {
		return &ConsoleWriter{writer: os.Stdout}, nil
	}

	switch options.Type {
	case "", "console":
		return NewConsoleWriterWithOptions(&ConsoleWriterOptions{Target: options.Target})
	case "file":
		return NewFileWriterWithOptions(&FileWriterOptions{Path: options.Path})
	default:
		return nil, errors.Errorf("unsupported writer type: %s", options.Type)
	}
}

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// 输出目标：stdout, stderr
	Target string `cfg:"target"`
}

// ConsoleWriter 控制台输出器
type ConsoleWriter struct {
	writer io.Writer
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) (*ConsoleWriter, error) {
	if options == nil {
		options = &ConsoleWriterOptions{Target: "stdout"}
	}

	switch options.Target {
	case "stderr":
		return &ConsoleWriter{writer: os.Stderr}, nil
	case "stdout", "":
		return &ConsoleWriter{writer: os.Stdout}, nil
	default:
		return nil, errors.Errorf("unsupported console target: %s", options.Target)
	}
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// Close 控制台不需要关闭
func (c *ConsoleWriter) Close() error {
	return nil
}
