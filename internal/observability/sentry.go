// Package observability wires error reporting to Sentry. With no DSN
// configured every call is a no-op.
package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/soundbites/quizapi/internal/config"
)

func InitSentry(cfg config.ObservabilityConfig, environment string) error {
	if cfg.SentryDSN == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      environment,
		AttachStacktrace: true,
		TracesSampleRate: cfg.TracesSampleRate,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureError reports err on the request's hub when there is one
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic with its stack
func CapturePanic(ctx context.Context, recovered interface{}, stack []byte, tags map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetExtra("panic", recovered)
		scope.SetExtra("stack", string(stack))
		hub.CaptureMessage("panic in request")
	})
}
