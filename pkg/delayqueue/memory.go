package delayqueue

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryQueue struct {
	mu      sync.Mutex
	entries map[Entry]time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[Entry]time.Time)}
}

func (q *MemoryQueue) Schedule(_ context.Context, entry Entry, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries[entry] = at

	return nil
}

func (q *MemoryQueue) Due(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]Entry, 0)

	for entry, at := range q.entries {
		if !at.After(now) {
			due = append(due, entry)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return q.entries[due[i]].Before(q.entries[due[j]])
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	for _, entry := range due {
		delete(q.entries, entry)
	}

	return due, nil
}

// Len reports the number of entries still waiting.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}
