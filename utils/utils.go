package utils

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLog returns a component logger writing to <dir><name>.log. Lines are
// zap console entries, so every component shares one timestamp and level
// format while keeping the Printf call sites.
func NewLog(dir, name string) *log.Logger {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			panic(err)
		}
	}
	fileName := fmt.Sprintf("%s%s.log", dir, name)
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		panic(err)
	}
	return zap.NewStdLog(newZap(zapcore.AddSync(file)).Named(name))
}

// NewConsoleLog is NewLog for stderr, used by the command line.
func NewConsoleLog(name string) *log.Logger {
	return zap.NewStdLog(newZap(zapcore.AddSync(os.Stderr)).Named(name))
}

func newZap(writer zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), writer, zapcore.InfoLevel)
	return zap.New(core)
}
