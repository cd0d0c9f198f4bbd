package transport

import "sync"

// chunk is one read from the child: data, or the error that ended the stream.
type chunk struct {
	data []byte
	err  error
}

// chunkQueue is a thread-safe FIFO between the reader goroutine and Expect.
//
// It is unbounded so the reader never blocks on a slow matcher. The signal
// channel lets Expect wait for data alongside its context and timer.
type chunkQueue struct {
	mu     sync.Mutex
	chunks []chunk
	closed bool
	signal chan struct{} // buffered, size 1
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{
		chunks: make([]chunk, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds c to the back of the queue. Returns false if the queue is closed.
func (q *chunkQueue) Enqueue(c chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.chunks = append(q.chunks, c)

	// Non-blocking: the size 1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front chunk without blocking.
func (q *chunkQueue) TryDequeue() (chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return chunk{}, false
	}

	c := q.chunks[0]
	q.chunks[0] = chunk{}

	if len(q.chunks) == 1 {
		q.chunks = q.chunks[:0]
	} else {
		q.chunks = q.chunks[1:]
	}

	return c, true
}

// Wait returns a channel that signals when chunks may be available.
func (q *chunkQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued chunks.
func (q *chunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Close marks the queue closed and wakes any waiter.
func (q *chunkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
