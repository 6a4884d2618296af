package observability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundbites/quizapi/internal/config"
)

// newRecordingHub returns a hub whose events are captured in BeforeSend and
// never leave the process.
func newRecordingHub(t *testing.T) (*sentry.Hub, func() []*sentry.Event) {
	t.Helper()

	var mu sync.Mutex
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	return sentry.NewHub(client, sentry.NewScope()), func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}
}

func TestInitSentry_DisabledWithoutDSN(t *testing.T) {
	assert.NoError(t, InitSentry(config.ObservabilityConfig{}, "test"))
}

func TestCaptureError_UsesContextHub(t *testing.T) {
	hub, events := newRecordingHub(t)
	ctx := sentry.SetHubOnContext(context.Background(), hub)

	CaptureError(ctx, errors.New("store down"), map[string]string{"operation": "login"})
	CaptureError(ctx, nil, nil)

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, "login", got[0].Tags["operation"])
}

func TestCapturePanic(t *testing.T) {
	hub, events := newRecordingHub(t)
	ctx := sentry.SetHubOnContext(context.Background(), hub)

	CapturePanic(ctx, "boom", []byte("stack"), map[string]string{"path": "/auth/login"})

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, "panic in request", got[0].Message)
	assert.Equal(t, "/auth/login", got[0].Tags["path"])
}

func TestCaptureError_NoClientIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		CaptureError(context.Background(), errors.New("x"), nil)
	})
}
