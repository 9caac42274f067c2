// Package logger 日志初始化与组件日志
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

// Init 设置全局日志级别与格式，format 为 text 或 json，w 为空时输出到 stderr
func Init(level, format string, w ...io.Writer) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		out = w[0]
	}

	std.SetOutput(out)
	std.SetLevel(lvl)
	switch format {
	case "json":
		std.SetFormatter(&logrus.JSONFormatter{})
	default:
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return nil
}

// L 返回全局 logger
func L() *logrus.Logger {
	return std
}

// WithComponent 返回带 component 字段的日志入口
func WithComponent(component string) *logrus.Entry {
	return std.WithField("component", component)
}
