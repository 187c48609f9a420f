// Package log 基于 zap 封装了全局的结构化日志记录器。
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 未调用 Init 前使用空实现，保证库代码在任何时刻都能安全打日志。
var sugar = zap.NewNop().Sugar()

// Init 初始化 zap logger。
// level 控制最低输出级别；format 为 "console" 时使用开发编码，否则输出 JSON；
// outputPath 非空时在 stdout 之外额外写入文件。
func Init(level, format, outputPath string) {
	var zapConfig zap.Config

	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.Encoding = "console"
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	}

	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		_ = os.MkdirAll(outputPath, os.ModePerm)
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, outputPath+"/app.log")
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}

	sugar = logger.Sugar()
}

// Info 记录一条 info 级别的日志。
func Info(msg string) {
	sugar.Info(msg)
}

// Infof 使用格式化字符串记录一条 info 级别的日志。
func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow 使用键值对记录一条 info 级别的结构化日志。
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

// Warnf 使用格式化字符串记录一条 warn 级别的日志。
func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

// Error 记录一条 error 级别的日志，并附带 error 信息。
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

// Errorf 使用格式化字符串记录一条 error 级别的日志。
func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Fatal 记录一条 fatal 级别的日志，并附带 error 信息，然后退出进程。
func Fatal(msg string, err error) {
	sugar.Fatalw(msg, "error", err)
}

// Fatalf 使用格式化字符串记录一条 fatal 级别的日志，然后退出进程。
func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}

// Sync 将缓冲区中的日志刷新到底层 Writer，进程退出前调用。
func Sync() {
	_ = sugar.Sync()
}
