package artifactcache

import "sync"

// lockTable hands out one RWMutex per record id and forgets it once nobody
// holds or waits on it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	sync.RWMutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*recordLock)}
}

func (t *lockTable) acquire(id string) *recordLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[id]
	if !ok {
		l = &recordLock{}
		t.locks[id] = l
	}
	l.refs++
	return l
}

func (t *lockTable) release(id string, l *recordLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
}

// lock takes the exclusive lock for id and returns its release func.
func (t *lockTable) lock(id string) func() {
	l := t.acquire(id)
	l.Lock()
	return func() {
		l.Unlock()
		t.release(id, l)
	}
}

// rlock takes the shared lock for id and returns its release func.
func (t *lockTable) rlock(id string) func() {
	l := t.acquire(id)
	l.RLock()
	return func() {
		l.RUnlock()
		t.release(id, l)
	}
}

// tryLock takes the exclusive lock for id only if it is free right now.
func (t *lockTable) tryLock(id string) (func(), bool) {
	l := t.acquire(id)
	if !l.TryLock() {
		t.release(id, l)
		return nil, false
	}
	return func() {
		l.Unlock()
		t.release(id, l)
	}, true
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
