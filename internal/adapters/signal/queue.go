package signal

import (
	"sync"

	"github.com/cicare/callsdk/internal/core"
)

type frame struct {
	event    string
	data     []byte
	critical bool
}

// sendQueue is the bounded outbound buffer shared between Send and the
// write pump. It survives reconnects, so messages queued mid-reconnect
// go out on the next connection. On overflow the oldest non-critical
// frame is dropped; a critical frame that finds no room is refused.
type sendQueue struct {
	mu     sync.Mutex
	items  []frame
	max    int
	notify chan struct{}
}

func newSendQueue(max int) *sendQueue {
	return &sendQueue{
		max:    max,
		notify: make(chan struct{}, 1),
	}
}

func (q *sendQueue) push(f frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.max {
		dropped := false
		for i, it := range q.items {
			if !it.critical {
				q.items = append(q.items[:i], q.items[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return core.ErrQueueFull
		}
	}
	q.items = append(q.items, f)
	q.wake()
	return nil
}

// pushFront requeues a frame that failed to write, keeping its place
// ahead of everything queued after it.
func (q *sendQueue) pushFront(f frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]frame{f}, q.items...)
	q.wake()
}

func (q *sendQueue) pop() (frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return frame{}, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.wake()
	}
	return f, true
}

func (q *sendQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *sendQueue) hasCritical() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, f := range q.items {
		if f.critical {
			return true
		}
	}
	return false
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *sendQueue) wait() <-chan struct{} { return q.notify }

func (q *sendQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
