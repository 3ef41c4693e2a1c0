package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
)

func jobs(paths ...string) []FileJob {
	out := make([]FileJob, len(paths))
	for i, p := range paths {
		out[i] = FileJob{Path: p, Kind: ir.KindAnnualP7}
	}
	return out
}

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue(jobs("a.xlsx", "b.xlsx", "c.xlsx"))
	assert.Equal(t, 3, q.Len())

	for i, want := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, j.index)
		assert.Equal(t, want, j.job.Path)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
	assert.Zero(t, q.Len())
}

func TestJobQueue_Close(t *testing.T) {
	q := newJobQueue(jobs("a.xlsx", "b.xlsx"))
	_, ok := q.TryDequeue()
	require.True(t, ok)

	q.Close()
	_, ok = q.TryDequeue()
	assert.False(t, ok, "closed queue hands out nothing")
	q.Close() // idempotent
}

func TestJobQueue_ConcurrentWorkersTakeEachJobOnce(t *testing.T) {
	const n = 500
	paths := make([]string, n)
	for i := range paths {
		paths[i] = "f.xlsx"
	}
	q := newJobQueue(jobs(paths...))

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, ok := q.TryDequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[j.index]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for i, c := range seen {
		assert.Equal(t, 1, c, "job %d taken %d times", i, c)
	}
}
