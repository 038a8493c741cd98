package keylogger

import (
	"errors"
	"sync"

	"wordlog/internal/recorder"
)

// ErrQueueClosed is returned when sending to, or receiving from, a closed
// event queue.
var ErrQueueClosed = errors.New("keylogger: event queue closed")

// queue is an unbounded FIFO of key events. Any number of goroutines may
// send; a single goroutine receives.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []recorder.Event
	head   int
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// send appends ev. It never blocks.
func (q *queue) send(ev recorder.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
	return nil
}

// recv blocks until an event is available. After close it keeps returning
// queued events, then ErrQueueClosed.
func (q *queue) recv() (recorder.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head == len(q.items) {
		return recorder.Event{}, ErrQueueClosed
	}

	ev := q.items[q.head]
	q.items[q.head] = recorder.Event{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return ev, nil
}

// close stops further sends and wakes the receiver.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}

// len returns the number of queued events.
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
