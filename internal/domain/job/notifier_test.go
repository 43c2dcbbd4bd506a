package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWaiter struct {
	calls chan struct{}
	err   error
	sleep time.Duration
}

func (s *stubWaiter) WaitForEnqueue(ctx context.Context) error {
	select {
	case s.calls <- struct{}{}:
	default:
	}

	if s.sleep > 0 {
		timer := time.NewTimer(s.sleep)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

func waitForCall(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected waiter to be invoked")
	}
}

func TestNewQueueSignalRequiresWaiter(t *testing.T) {
	s, err := NewQueueSignal(SignalOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, s)
}

func TestQueueSignal_SubscriberIsWoken(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan struct{}, 4), sleep: 5 * time.Millisecond}
	s, err := NewQueueSignal(SignalOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := s.Subscribe()
	defer unsub()

	waitForCall(t, waiter.calls)
	select {
	case <-ch:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected wake-up to be delivered")
	}
}

func TestQueueSignal_UnsubscribeClosesChannel(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan struct{}, 1), sleep: 5 * time.Millisecond}
	s, err := NewQueueSignal(SignalOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := s.Subscribe()
	waitForCall(t, waiter.calls)

	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestQueueSignal_StopClosesAllSubscribers(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan struct{}, 2), err: errors.New("listen failed")}
	s, err := NewQueueSignal(SignalOptions{Waiter: waiter, Backoff: time.Millisecond})
	require.NoError(t, err)

	unsubA, chA := s.Subscribe()
	unsubB, chB := s.Subscribe()
	waitForCall(t, waiter.calls)

	s.Stop()

	for _, ch := range []<-chan struct{}{chA, chB} {
		_, ok := <-ch
		assert.False(t, ok)
	}

	unsubA()
	unsubB()
}
