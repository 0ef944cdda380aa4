package worker

import (
	"sync"
)

// Queue is a deduplicating FIFO of source paths waiting for a batch.
type Queue struct {
	ch        chan string
	stop      chan struct{}
	mu        sync.Mutex
	enqueued  map[string]struct{}
	accepting bool
}

func NewQueue(buf int) *Queue {
	return &Queue{
		ch:        make(chan string, buf*2+10),
		stop:      make(chan struct{}),
		enqueued:  make(map[string]struct{}),
		accepting: true,
	}
}

// Enqueue adds path unless the queue is stopped or the path is already queued.
// It blocks while the buffer is full, until the path is taken or StopAccepting is called.
func (q *Queue) Enqueue(path string) bool {
	q.mu.Lock()
	if !q.accepting {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.enqueued[path]; ok {
		q.mu.Unlock()
		return false
	}
	q.enqueued[path] = struct{}{}
	q.mu.Unlock()

	select {
	case q.ch <- path:
		return true
	case <-q.stop:
		q.Dequeued(path)
		return false
	}
}

// Dequeued releases path so it may be enqueued again.
func (q *Queue) Dequeued(path string) {
	q.mu.Lock()
	delete(q.enqueued, path)
	q.mu.Unlock()
}

// StopAccepting rejects new paths and releases callers blocked in Enqueue.
func (q *Queue) StopAccepting() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.accepting {
		q.accepting = false
		close(q.stop)
	}
}

func (q *Queue) Chan() <-chan string { return q.ch }

// Len reports the number of paths queued or in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}
