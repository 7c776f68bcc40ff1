package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"studio-notify/internal/domain/notification"
)

type chanSink struct {
	got chan Alert
	err error
}

func (s *chanSink) Publish(_ context.Context, a Alert) error {
	s.got <- a
	return s.err
}

func TestSubscribersReceiveSynchronously(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))

	var got []Alert
	unsubscribe := b.Subscribe(func(a Alert) { got = append(got, a) })

	b.Publish(Admitted(notification.Notification{ID: "n1", Title: "New Booking"}))
	require.Len(t, got, 1)
	assert.Equal(t, KindAdmitted, got[0].Kind)
	assert.Equal(t, "New Booking", got[0].Message)
	assert.Equal(t, "n1", got[0].Notification.ID)

	unsubscribe()
	b.Publish(Error("gone"))
	assert.Len(t, got, 1)
}

func TestSubscribersRunInSubscriptionOrder(t *testing.T) {
	b := NewBus(nil)

	var order []int
	var unsubscribe []func()
	for i := 0; i < 8; i++ {
		unsubscribe = append(unsubscribe, b.Subscribe(func(Alert) { order = append(order, i) }))
	}
	unsubscribe[3]()

	b.Publish(Error("x"))

	assert.Equal(t, []int{0, 1, 2, 4, 5, 6, 7}, order)
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := NewBus(nil)

	var got Alert
	b.Subscribe(func(a Alert) { got = a })
	b.Publish(Alert{Kind: KindError, Message: "x"})

	assert.False(t, got.Timestamp.IsZero())
}

func TestSinksReceiveInBackground(t *testing.T) {
	// The failure is logged after the sink returns, possibly after the test.
	b := NewBus(zap.NewNop())
	ok := &chanSink{got: make(chan Alert, 1)}
	failing := &chanSink{got: make(chan Alert, 1), err: errors.New("broker down")}
	b.AddSink(ok)
	b.AddSink(failing)

	b.Publish(Error("Failed to mark notification as read"))

	for _, s := range []*chanSink{ok, failing} {
		select {
		case a := <-s.got:
			assert.Equal(t, "Failed to mark notification as read", a.Message)
		case <-time.After(2 * time.Second):
			t.Fatal("sink was not called")
		}
	}
}
