package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for single-binary setups and tests.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]*localLease
	now    func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		leases: make(map[string]*localLease),
		now:    time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if current, ok := l.leases[key]; ok && now.Before(current.expiresAt) {
		return nil, ErrNotAcquired
	}

	lease := &localLease{locker: l, key: key, expiresAt: now.Add(ttl)}
	l.leases[key] = lease

	return lease, nil
}

type localLease struct {
	locker    *LocalLocker
	key       string
	expiresAt time.Time
}

func (l *localLease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if l.locker.leases[l.key] == l {
		delete(l.locker.leases, l.key)
	}

	return nil
}
