package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a sugared zap logger to Logger. Key/value pairs follow the
// message, as in zap's *w methods.
type ZapLogger struct {
	log   *zap.SugaredLogger
	level zap.AtomicLevel
}

var zapLogger *ZapLogger

// NewLogger builds the process logger from config and installs it as the
// package default.
func NewLogger(config zap.Config) (*ZapLogger, error) {
	built, err := config.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	zapLogger = &ZapLogger{log: built.Sugar(), level: config.Level}
	return zapLogger, nil
}

func GetLogger() *ZapLogger {
	if zapLogger == nil {
		panic("logger not initialized")
	}
	return zapLogger
}

// With returns a child logger that adds values to every entry.
func (l *ZapLogger) With(values ...any) *ZapLogger {
	return &ZapLogger{log: l.log.With(values...), level: l.level}
}

// SetLevel changes the level of this logger and every child sharing it.
// Unknown names are reported and ignored.
func (l *ZapLogger) SetLevel(name string) bool {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		l.log.Warnw("unknown log level", "level", name)
		return false
	}
	l.level.SetLevel(lvl)
	return true
}

func (l *ZapLogger) Enabled(lvl zapcore.Level) bool {
	return l.level.Enabled(lvl)
}

func (l *ZapLogger) Panic(message string, values ...any) { l.log.Panicw(message, values...) }
func (l *ZapLogger) Fatal(err error, values ...any)      { l.log.Fatalw(err.Error(), values...) }
func (l *ZapLogger) Info(message string, values ...any)  { l.log.Infow(message, values...) }
func (l *ZapLogger) Warn(message string, values ...any)  { l.log.Warnw(message, values...) }
func (l *ZapLogger) Error(message string, values ...any) { l.log.Errorw(message, values...) }
func (l *ZapLogger) Debug(message string, values ...any) { l.log.Debugw(message, values...) }

// Printf lets fasthttp write through the same sink.
func (l *ZapLogger) Printf(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

func (l *ZapLogger) sync() error {
	return l.log.Sync()
}
