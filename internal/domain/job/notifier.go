package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaiterRequired indicates a signal cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("queue signal waiter is required")

// Waiter blocks until the queue announces new work or ctx ends.
type Waiter interface {
	WaitForEnqueue(ctx context.Context) error
}

// SignalOptions configure a QueueSignal.
type SignalOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

// QueueSignal fans enqueue notifications out to any number of subscribers.
// A single listener goroutine runs while at least one subscriber exists.
type QueueSignal struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu     sync.Mutex
	subs   map[chan struct{}]struct{}
	cancel context.CancelFunc
}

// NewQueueSignal builds a QueueSignal.
func NewQueueSignal(opts SignalOptions) (*QueueSignal, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	s := &QueueSignal{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		subs:       make(map[chan struct{}]struct{}),
	}
	if s.waitWindow <= 0 {
		s.waitWindow = time.Minute
	}
	if s.backoff <= 0 {
		s.backoff = 250 * time.Millisecond
	}
	return s, nil
}

// Subscribe returns a coalescing channel that receives a value after each
// wake-up, and a func that removes the subscription.
func (s *QueueSignal) Subscribe() (func(), <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.listen(ctx)
	}

	ch := make(chan struct{}, 1)
	s.subs[ch] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; !ok {
				return
			}
			delete(s.subs, ch)
			drainAndClose(ch)
			if len(s.subs) == 0 && s.cancel != nil {
				s.cancel()
				s.cancel = nil
			}
		})
	}, ch
}

// Stop cancels the listener and closes every subscriber channel.
func (s *QueueSignal) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for ch := range s.subs {
		drainAndClose(ch)
		delete(s.subs, ch)
	}
}

func (s *QueueSignal) listen(ctx context.Context) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, s.waitWindow)
		err := s.waiter.WaitForEnqueue(waitCtx)
		cancel()

		s.broadcast()

		if err == nil || ctx.Err() != nil {
			continue
		}
		timer := time.NewTimer(s.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *QueueSignal) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
