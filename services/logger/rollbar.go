package logsvc

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// RollbarLogger reports to rollbar and writes structured lines through zap.
type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(stackTracer)
	return &RollbarLogger{zl: zl}
}

// NewZapLogger returns a named zap.Logger: human-readable in debug, JSON otherwise.
func NewZapLogger(conf *core.Config, name string) *zap.Logger {
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
		zconf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zconf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zconf.EncoderConfig.TimeKey = "time"

	zl, err := zconf.Build(zap.AddCallerSkip(1))
	if err != nil {
		zl = zap.NewExample()
	}
	return zl.Named(name)
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes buffered log lines and waits for pending rollbar items.
func (l RollbarLogger) Sync() {
	_ = l.zl.Sync()
	rollbar.Wait()
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case user.User:
			// set logged in User; only one
			if !usrSet && v.ID != "" {
				rollbar.SetPerson(v.ID, v.Username, v.Email)
				fields = append(fields, zap.String("user_id", v.ID))
				usrSet = true
			}
			continue
		case error:
			fields = append(fields, zap.Error(v))
		case map[string]interface{}:
			for key, val := range v {
				fields = append(fields, zap.Any(key, val))
			}
		default:
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
		newArgs = append(newArgs, arg)
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs, fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rArgs...)
	l.zl.Debug(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rArgs, fields := l.prepare(msg, args)
	rollbar.Info(rArgs...)
	l.zl.Info(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rArgs...)
	l.zl.Warn(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rArgs, fields := l.prepare(msg, args)
	rollbar.Error(rArgs...)
	l.zl.Error(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rArgs...)
	rollbar.Wait()
	l.zl.Fatal(msg, fields...)
}

// stackTracer extracts the stack recorded by pkg/errors, if any.
func stackTracer(err error) ([]runtime.Frame, bool) {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var st stackTracer
	if !errors.As(err, &st) {
		return nil, false
	}

	trace := st.StackTrace()
	pcs := make([]uintptr, 0, len(trace))
	for _, f := range trace {
		pcs = append(pcs, uintptr(f))
	}
	frames := runtime.CallersFrames(pcs)
	result := make([]runtime.Frame, 0, len(pcs))
	for {
		frame, more := frames.Next()
		result = append(result, frame)
		if !more {
			break
		}
	}
	return result, true
}
