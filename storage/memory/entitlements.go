package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/PaulFidika/meterkit/entitlements"
	"github.com/google/uuid"
)

// DefaultLockWait bounds how long Update waits for a busy (user, sku) row.
const DefaultLockWait = 3 * time.Second

type rowKey struct {
	user string
	sku  string
}

// keyLock is a one-slot semaphore. refs counts holders and waiters so the
// entry can be dropped once nobody uses it.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// EntitlementStore is an in-memory implementation of entitlements.Store.
// Each (user, sku) has its own exclusive lock, so writers to different keys
// never block each other. Intended for tests and single-node deployments.
type EntitlementStore struct {
	mu       sync.RWMutex
	rows     map[rowKey]*entitlements.Entitlement
	locks    map[rowKey]*keyLock
	lockWait time.Duration
	now      func() time.Time
}

// NewEntitlementStore creates a store. If lockWait <= 0, DefaultLockWait is used.
func NewEntitlementStore(lockWait time.Duration) *EntitlementStore {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &EntitlementStore{
		rows:     make(map[rowKey]*entitlements.Entitlement),
		locks:    make(map[rowKey]*keyLock),
		lockWait: lockWait,
		now:      time.Now,
	}
}

func (s *EntitlementStore) Find(ctx context.Context, userID, sku string) (*entitlements.Entitlement, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[rowKey{userID, sku}].Clone(), nil
}

func (s *EntitlementStore) Update(ctx context.Context, userID, sku string, seed *entitlements.Entitlement, fn entitlements.MutateFunc) (*entitlements.Entitlement, error) {
	k := rowKey{userID, sku}
	lock := s.lockFor(k)
	if err := s.acquire(ctx, lock.ch); err != nil {
		s.releaseRef(k, lock)
		return nil, err
	}
	defer func() {
		<-lock.ch
		s.releaseRef(k, lock)
	}()

	s.mu.RLock()
	cur := s.rows[k].Clone()
	s.mu.RUnlock()

	now := s.now()
	created := false
	if cur == nil {
		if seed == nil {
			return nil, entitlements.ErrNotFound
		}
		cur = seed.Clone()
		cur.ID = uuid.NewString()
		cur.UserID, cur.SKU = userID, sku
		cur.CreatedAt, cur.UpdatedAt = now, now
		created = true
	}

	write, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if !write && !created {
		return cur, nil
	}
	if write {
		cur.UpdatedAt = now
	}
	s.mu.Lock()
	s.rows[k] = cur.Clone()
	s.mu.Unlock()
	return cur, nil
}

// Len returns the number of stored rows.
func (s *EntitlementStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// LockedKeys returns the number of (user, sku) lock entries currently held
// or waited on.
func (s *EntitlementStore) LockedKeys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locks)
}

func (s *EntitlementStore) lockFor(k rowKey) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[k] = l
	}
	l.refs++
	return l
}

func (s *EntitlementStore) releaseRef(k rowKey, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, k)
	}
}

func (s *EntitlementStore) acquire(ctx context.Context, lock chan struct{}) error {
	select {
	case lock <- struct{}{}:
		return nil
	default:
	}
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
		return nil
	case <-timer.C:
		return entitlements.ErrContention
	case <-ctx.Done():
		return ctx.Err()
	}
}
