package log

import (
	"github.com/hatlonely/spendagg/log/logger"
)

var defaultLogger logger.Logger

func init() {
	// 默认向终端输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() logger.Logger {
	return defaultLogger
}

// NewLoggerWithOptions options 为 nil 时返回默认日志器
func NewLoggerWithOptions(options *logger.SLogOptions) (logger.Logger, error) {
	if options == nil {
		return defaultLogger, nil
	}
	return logger.NewSLogWithOptions(options)
}
