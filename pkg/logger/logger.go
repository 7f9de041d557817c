package logger

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	maillog "github.com/wneessen/go-mail/log"
)

// SMTP adapts a slog.Logger to the go-mail session logger so the SMTP
// dialogue lands in the application log under its own component.
type SMTP struct {
	log *slog.Logger
}

var _ maillog.Logger = (*SMTP)(nil)

// NewSMTP returns a session logger tagged with the given component.
func NewSMTP(base *slog.Logger, component string) *SMTP {
	if base == nil {
		base = slog.Default()
	}
	return &SMTP{log: base.With("component", component)}
}

func (s *SMTP) Debugf(l maillog.Log) { s.log.Debug(format(l), "direction", direction(l)) }
func (s *SMTP) Infof(l maillog.Log) { s.log.Info(format(l), "direction", direction(l)) }
func (s *SMTP) Warnf(l maillog.Log) { s.log.Warn(format(l), "direction", direction(l)) }
func (s *SMTP) Errorf(l maillog.Log) { s.log.Error(format(l), "direction", direction(l)) }

func format(l maillog.Log) string {
	return fmt.Sprintf(l.Format, l.Messages...)
}

func direction(l maillog.Log) string {
	if l.Direction == maillog.DirClientToServer {
		return "client->server"
	}
	return "server->client"
}

// Cron adapts a slog.Logger to the cron runner logger. The runner reports
// every wake-up, so its info lines are logged at debug level.
type Cron struct {
	log *slog.Logger
}

var _ cron.Logger = (*Cron)(nil)

// NewCron returns a runner logger tagged with the given component.
func NewCron(base *slog.Logger, component string) *Cron {
	if base == nil {
		base = slog.Default()
	}
	return &Cron{log: base.With("component", component)}
}

func (c *Cron) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c *Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
