package session

import "sync"

// Locker provides per-session mutual exclusion. Different sessions never block
// each other. A session is busy while any goroutine holds, waits for, or has
// pinned its lock; the sweeper never evicts busy sessions.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
	pins int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock blocks until the session lock is held and returns its release func.
func (l *Locker) Lock(id string) func() {
	l.mu.Lock()
	k := l.entry(id)
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.refs--
		l.release(id, k)
		l.mu.Unlock()
	}
}

// TryLock acquires the lock only if the session is not busy.
func (l *Locker) TryLock(id string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if k, ok := l.locks[id]; ok && (k.refs > 0 || k.pins > 0) {
		return nil, false
	}
	k := l.entry(id)
	k.refs++
	k.mu.Lock()

	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.refs--
		l.release(id, k)
		l.mu.Unlock()
	}, true
}

// Pin marks the session in flight for the whole turn, including the spans where
// its lock is released around remote calls.
func (l *Locker) Pin(id string) func() {
	l.mu.Lock()
	k := l.entry(id)
	k.pins++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			k.pins--
			l.release(id, k)
			l.mu.Unlock()
		})
	}
}

// Busy reports whether the session is locked, awaited or pinned.
func (l *Locker) Busy(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.locks[id]
	return ok && (k.refs > 0 || k.pins > 0)
}

func (l *Locker) entry(id string) *keyLock {
	k, ok := l.locks[id]
	if !ok {
		k = &keyLock{}
		l.locks[id] = k
	}
	return k
}

func (l *Locker) release(id string, k *keyLock) {
	if k.refs == 0 && k.pins == 0 && l.locks[id] == k {
		delete(l.locks, id)
	}
}
