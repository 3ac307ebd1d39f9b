package biz

import "sync"

// keyedMutex serializes work per key. Used for per-session turn handling and
// per-incident approval so two writers never interleave on the same entity.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*entityLock{}}
}

// Lock acquires the mutex for key and returns its unlock function. Lock
// entries are dropped once the last holder releases, the map stays small.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &entityLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Mutex.Lock()
	return func() {
		l.Mutex.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
