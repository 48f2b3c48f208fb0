package logging

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CronLogger routes scheduler messages to l. Routine scheduling chatter is
// logged at debug.
func CronLogger(l zerolog.Logger) cron.Logger {
	return cronLogger{l: l}
}

type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
