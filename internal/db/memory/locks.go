package memory

import (
	"context"
	"sync"

	"studyhub.dev/portal-bot/internal/features/content"
)

// keyLocks - блокировки по ключу. Ожидание прерывается отменой контекста.
type keyLocks struct {
	mu    sync.Mutex
	locks map[content.LockKey]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int // держатель + ожидающие
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[content.LockKey]*keyLock)}
}

func (l *keyLocks) lock(ctx context.Context, key content.LockKey) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *keyLocks) unlock(key content.LockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl := l.locks[key]
	<-kl.ch
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
