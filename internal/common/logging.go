package common

import (
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// NewLogger builds a leveled, key-value logger the way the teacher wires
// logging.Info(logger)/logging.Error(logger): a single base go-kit logger
// decorated with a timestamp and caller, filtered by the configured level.
func NewLogger(levelName string) kitlog.Logger {
	base := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.DefaultCaller)
	return level.NewFilter(base, parseLevel(levelName))
}

func parseLevel(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// Info, Warn, Debug and Error mirror the teacher's logging.Info/Error helpers:
// thin decorators that pin the level key so call sites don't repeat it.
func Info(logger kitlog.Logger) kitlog.Logger  { return level.Info(logger) }
func Warn(logger kitlog.Logger) kitlog.Logger  { return level.Warn(logger) }
func Debug(logger kitlog.Logger) kitlog.Logger { return level.Debug(logger) }
func Error(logger kitlog.Logger) kitlog.Logger { return level.Error(logger) }
