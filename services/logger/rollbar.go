package logsvc

import (
	"fmt"
	"io"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/rollcall/core"
)

// RollbarLogger writes to a logrus logger and reports to Rollbar when enabled.
type RollbarLogger struct {
	log *logrus.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(log *logrus.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	if conf.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return &RollbarLogger{log: log}
}

// NewStdLogger is a logrus logger formatted for the environment: JSON in production, text otherwise.
func NewStdLogger(out io.Writer, conf *core.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if conf.Env == "PROD" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// NewDiscardLogger returns a logger that drops everything and never reports to Rollbar.
func NewDiscardLogger() *RollbarLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	rollbar.SetEnabled(false)
	return &RollbarLogger{log: log}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare splits args into a field map and an error.
// expected fmt: error | map[string]interface{} | "key", value pairs
func (l RollbarLogger) prepare(args []interface{}) (map[string]interface{}, error) {
	var err error
	fields := make(map[string]interface{})
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case error:
			if err == nil {
				err = arg
			} else {
				fields[fmt.Sprintf("error%d", i)] = arg.Error()
			}
		case map[string]interface{}:
			for k, v := range arg {
				fields[k] = v
			}
		case string:
			if i+1 < len(args) {
				fields[arg] = args[i+1]
				i++
			} else {
				fields[fmt.Sprintf("arg%d", i)] = arg
			}
		default:
			fields[fmt.Sprintf("arg%d", i)] = fmt.Sprintf("%+v", arg)
		}
	}
	return fields, err
}

func (l RollbarLogger) entry(err error, fields map[string]interface{}) *logrus.Entry {
	e := l.log.WithFields(fields)
	if err != nil {
		e = e.WithError(err)
	}
	return e
}

func (l RollbarLogger) report(level string, msg string, err error, fields map[string]interface{}) {
	if err != nil {
		rollbar.Log(level, msg, err, fields)
		return
	}
	rollbar.Log(level, msg, fields)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	fields, err := l.prepare(args)
	l.entry(err, fields).Debug(msg)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	fields, err := l.prepare(args)
	l.report(rollbar.INFO, msg, err, fields)
	l.entry(err, fields).Info(msg)
}

func (l RollbarLogger) Warning(msg string, args ...interface{}) {
	fields, err := l.prepare(args)
	l.report(rollbar.WARN, msg, err, fields)
	l.entry(err, fields).Warn(msg)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	fields, err := l.prepare(args)
	l.report(rollbar.ERR, msg, err, fields)
	l.entry(err, fields).Error(msg)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	fields, err := l.prepare(args)
	l.report(rollbar.CRIT, msg, err, fields)
	rollbar.Wait()
	l.entry(err, fields).Fatal(msg)
}
