package app

import (
	"sync"

	"github.com/ayusman/verovision/pkg/metrics"
)

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 32

// Hub fans session updates out to any number of subscribers. A subscriber
// whose queue is full misses updates rather than slowing the frame loop.
// Commit subscribers only see updates that commit a character, and never miss
// one.
type Hub struct {
	buffer int

	mu      sync.RWMutex
	subs    map[uint64]chan Update
	commits map[uint64]*commitQueue
	nextID  uint64
}

// NewHub creates a Hub. A non-positive buffer uses DefaultSubscriberBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		buffer:  buffer,
		subs:    make(map[uint64]chan Update),
		commits: make(map[uint64]*commitQueue),
	}
}

// Notify implements Sink. It never blocks.
func (h *Hub) Notify(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- u:
		default:
			metrics.RecordObserverDrop()
		}
	}
	if u.Committed != "" {
		for _, q := range h.commits {
			q.push(u)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// SubscribeCommits registers a subscriber that receives every update
// carrying a committed character, in order. Its queue grows instead of
// dropping, so a slow consumer delays commits but never loses them. The
// cancel func discards anything still queued and closes the channel.
func (h *Hub) SubscribeCommits() (<-chan Update, func()) {
	q := newCommitQueue()

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.commits[id] = q
	h.mu.Unlock()

	go q.pump()

	var once sync.Once
	return q.out, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.commits, id)
			h.mu.Unlock()
			close(q.quit)
		})
	}
}

// Subscribers returns the number of active subscribers of either kind.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs) + len(h.commits)
}

// commitQueue is an unbounded FIFO drained into out by pump.
type commitQueue struct {
	mu      sync.Mutex
	pending []Update

	wake chan struct{}
	quit chan struct{}
	out  chan Update
}

func newCommitQueue() *commitQueue {
	return &commitQueue{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		out:  make(chan Update),
	}
}

func (q *commitQueue) push(u Update) {
	q.mu.Lock()
	q.pending = append(q.pending, u)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *commitQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}
		u := q.pending[0]
		q.pending[0] = Update{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case q.out <- u:
		case <-q.quit:
			return
		}
	}
}
