package eventbus

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/pkg/logging"
)

type committed struct{ rows int }
type rolledBack struct{}

func TestPublish_MatchingSubscriberOnly(t *testing.T) {
	bus := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var got int
	bus.Subscribe(func(e *committed) { got = e.rows })
	bus.Subscribe(func(e *rolledBack) { t.Error("should not be called") })

	bus.Publish(&committed{rows: 3})
	require.Equal(t, 3, got)
}

func TestPublishE_NoSubscribers(t *testing.T) {
	bus := NewEventPublisher(nil)
	require.ErrorIs(t, bus.PublishE(&committed{}), ErrNoSubscribers)
}

func TestPublishE_CollectsErrorsAndPanics(t *testing.T) {
	bus := NewEventPublisher(nil)
	boom := errors.New("boom")
	called := false
	bus.Subscribe(func(e *committed) error { return boom })
	bus.Subscribe(func(e *committed) { panic("intentional") })
	bus.Subscribe(func(e *committed) { called = true })

	err := bus.PublishE(&committed{})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "panicked")
	require.True(t, called, "a panicking handler does not stop the others")
}

func TestPublish_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	bus := NewEventPublisher(log)
	bus.Subscribe(func(e *committed) (int, error) { return 0, nil })

	bus.Publish(&committed{})
	require.Contains(t, buf.String(), "eventbus.publish.failed")
	require.Contains(t, buf.String(), "invalid handler return signature")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	bus := NewEventPublisher(nil)
	calls := 0
	unsubscribe := bus.Subscribe(func(e *committed) { calls++ })
	bus.Subscribe(func(e *committed) {})
	require.Equal(t, 2, bus.SubscribersCount())

	unsubscribe()
	unsubscribe()
	require.Equal(t, 1, bus.SubscribersCount())
	bus.Publish(&committed{})
	require.Equal(t, 0, calls)

	bus.Clear()
	require.Equal(t, 0, bus.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *committed) {}, []any{&committed{}}))
	require.False(t, MatchSignature(func(e *committed) {}, []any{&rolledBack{}}))
	require.False(t, MatchSignature(func(e *committed) {}, []any{}))
	require.True(t, MatchSignature(func(ctx context.Context, e *committed) {}, []any{context.Background(), &committed{}}))
	require.True(t, MatchSignature(func(e *committed) {}, []any{nil}))
	require.False(t, MatchSignature("not a func", []any{}))
}
