package kv

import "sync"

// notifier fans out change events to watchers. Sends never block: a watcher
// whose buffer is full misses the event and catches up on its next poll tick.
type notifier struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func (n *notifier) subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]chan Event)
	}
	id := n.next
	n.next++
	ch := make(chan Event, 64)
	n.subs[id] = ch
	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
