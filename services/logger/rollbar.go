package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/user"
)

// RollbarLogger reports to rollbar and mirrors every entry to a std logger.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.Ref or user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.Ref:
			if !personSet {
				rollbar.SetPerson(v.ID, v.DisplayName, "")
				personSet = true
			}
		case user.User:
			if !personSet {
				rollbar.SetPerson(v.ID, v.Username, v.Email)
				personSet = true
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
