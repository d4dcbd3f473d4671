// Package poller republishes store projections to view adapters. Each view
// holds one subscription: an immediate read on start, then re-reads on a
// periodic timer and on store change notifications, publishing only when the
// projection actually changed.
package poller

import (
	"reflect"
	"sync"
	"time"

	"hallpos/internal/kv"
)

// DefaultInterval matches the cadence the views were built around.
const DefaultInterval = 500 * time.Millisecond

// Subscription is one view's polling loop. Stop is synchronous: when it
// returns, no further publish will happen.
type Subscription struct {
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// Subscribe starts polling: read and publish immediately, then republish on
// timer ticks and change notifications whenever the value read differs from
// the last published one (structural equality).
func Subscribe[T any](st kv.Store, interval time.Duration, read func() T, publish func(T)) *Subscription {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sub := &Subscription{quit: make(chan struct{}), done: make(chan struct{})}
	events, cancel := st.Watch()

	go func() {
		defer close(sub.done)
		defer cancel()

		last := read()
		publish(last)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sub.quit:
				return
			case <-ticker.C:
			case <-events:
			}
			cur := read()
			if !reflect.DeepEqual(cur, last) {
				last = cur
				publish(cur)
			}
		}
	}()
	return sub
}

// Stop disarms the timer, unregisters the listener and waits for the polling
// goroutine to exit.
func (s *Subscription) Stop() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}
