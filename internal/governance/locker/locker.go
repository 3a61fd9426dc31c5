// Package locker serialises read-modify-write cycles on a single lead.
package locker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// LeadLocker grants exclusive access to one lead at a time.
type LeadLocker interface {
	Lock(ctx context.Context, leadID uuid.UUID) (Unlock, error)
}

// KeyedMutex is an in-process LeadLocker. Entries are dropped once nobody
// holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, leadID uuid.UUID) (Unlock, error) {
	k.mu.Lock()
	entry, ok := k.locks[leadID]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[leadID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(leadID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			k.release(leadID, entry)
		})
	}, nil
}

func (k *KeyedMutex) release(leadID uuid.UUID, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, leadID)
	}
}

var _ LeadLocker = (*KeyedMutex)(nil)
