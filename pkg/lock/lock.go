// Package lock serialises step execution per workflow execution.
package lock

import (
	"context"
	"errors"
	"time"
)

var ErrNotAcquired = errors.New("lock is held by another owner")

// Locker hands out exclusive leases on a key. A lease expires on its own after ttl
// so a crashed worker cannot block an execution forever.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// ExecutionKey is the lock key guarding one execution.
func ExecutionKey(executionID string) string {
	return "formflow:lock:execution:" + executionID
}
