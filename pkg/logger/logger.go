package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.SugaredLogger = zap.NewNop().Sugar()

// Init configures the process-wide logger. When file is non-empty the output
// is rotated with lumberjack, otherwise everything goes to stdout.
func Init(level, file string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if file != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, zapLevel)
	log = zap.New(core).Sugar()
}

func Debug(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(format string, args ...interface{})  { log.Infof(format, args...) }
func Warn(format string, args ...interface{})  { log.Warnf(format, args...) }
func Error(format string, args ...interface{}) { log.Errorf(format, args...) }
func Fatal(format string, args ...interface{}) { log.Fatalf(format, args...) }

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	_ = log.Sync()
}
