package introspect

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

type refLock struct {
	mu  sync.Mutex
	ref int32
}

// keyLocker serializes work per key, e.g. parsing one package directory, while
// different keys proceed in parallel. Entries are dropped once no goroutine holds
// or waits for them.
type keyLocker struct {
	locks sync.Map
	sep   string
}

func newKeyLocker() *keyLocker {
	return &keyLocker{sep: ":"}
}

// Lock returns a function that will unlock the key when called
func (kl *keyLocker) Lock(keys ...any) func() {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%v", k))
	}
	combinedKey := strings.Join(parts, kl.sep)

	lockIface, _ := kl.locks.LoadOrStore(combinedKey, &refLock{})
	lock := lockIface.(*refLock)

	atomic.AddInt32(&lock.ref, 1)
	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()
		if atomic.AddInt32(&lock.ref, -1) == 0 {
			kl.locks.Delete(combinedKey)
		}
	}
}

// held reports the number of keys currently tracked.
func (kl *keyLocker) held() int {
	n := 0
	kl.locks.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
