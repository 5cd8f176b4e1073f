package sentryutil

import (
	"time"

	"github.com/getsentry/sentry-go"

	"fishmeout-bot/internal/logging"
)

// Init configures error reporting. An empty dsn leaves reporting disabled.
func Init(dsn, environment, release string) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		logging.Log.Warn().Err(err).Msg("sentry init (non-blocking)")
	}
	if dsn == "" {
		logging.Log.Debug().Msg("SENTRY_DSN empty, error tracking disabled")
	} else {
		logging.Log.Info().Str("environment", environment).Msg("sentry initialized")
	}
}

// Flush waits for buffered events to be sent.
func Flush() { sentry.Flush(2 * time.Second) }

// CaptureError reports err with the given tags. nil is ignored.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
