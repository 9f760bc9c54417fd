package store

import (
	"context"
	"sync"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

// fanout signals in-process listeners that the stored set changed. Each
// listener channel has a buffer of one, so bursts of changes collapse into a
// single pending signal.
type fanout struct {
	mu        sync.Mutex
	listeners map[chan struct{}]struct{}
}

func newFanout() *fanout {
	return &fanout{listeners: make(map[chan struct{}]struct{})}
}

func (f *fanout) listen() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	f.mu.Lock()
	f.listeners[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.listeners, ch)
		f.mu.Unlock()
	}
}

func (f *fanout) notify() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// subscription runs one watch loop until closed.
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	stop   func()
}

// Close cancels the loop. It does not wait for an in-flight delivery, so it
// is safe to call from inside a handler.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}

// report hands a listener failure to the watch loop, giving up once ctx is
// done.
func report(ctx context.Context, failures chan<- error, err error) {
	select {
	case failures <- err:
	case <-ctx.Done():
	}
}

// signal marks the stored set as changed without blocking.
func signal(changes chan<- struct{}) {
	select {
	case changes <- struct{}{}:
	default:
	}
}

// watch delivers a snapshot right away and again after every signal on
// changes. Fetch errors and anything received on failures go to onError, so
// both callbacks run on the loop goroutine only. A nil failures channel is
// never ready.
func watch(parent context.Context, changes <-chan struct{}, failures <-chan error, fetch func(context.Context) ([]models.Message, error),
	onSnapshot SnapshotHandler, onError ErrorHandler, stop func()) *subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &subscription{cancel: cancel, done: make(chan struct{}), stop: stop}

	deliver := func() {
		msgs, err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onSnapshot(msgs)
	}

	go func() {
		defer close(sub.done)
		defer sub.Close()

		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				deliver()
			case err, ok := <-failures:
				if !ok {
					failures = nil
					continue
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return sub
}
