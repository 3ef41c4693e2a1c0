package engine

import (
	"sync"
)

// jobQueue is a thread-safe FIFO of batch jobs. Workers take jobs from the
// front, so files start in the order they were queued.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []indexedJob
	closed bool
}

type indexedJob struct {
	index int
	job   FileJob
}

func newJobQueue(jobs []FileJob) *jobQueue {
	q := &jobQueue{jobs: make([]indexedJob, 0, len(jobs))}
	for i, j := range jobs {
		q.jobs = append(q.jobs, indexedJob{index: i, job: j})
	}
	return q
}

// TryDequeue removes and returns the front job. It returns false when the
// queue is empty or closed.
func (q *jobQueue) TryDequeue() (indexedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.jobs) == 0 {
		return indexedJob{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = indexedJob{}
	q.jobs = q.jobs[1:]
	return j, true
}

// Len returns the number of jobs not yet taken.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close drops the remaining jobs; later dequeues report false.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
