package state

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type lockEntry struct {
	mu sync.Mutex
	// refs counts holders and waiters; only touched inside Compute.
	refs int
}

// Locker serializes turns per session id. Different ids never contend, and an
// id's entry is dropped once no turn holds or waits on it.
type Locker struct {
	locks *xsync.MapOf[string, *lockEntry]
}

func NewLocker() *Locker {
	return &Locker{locks: xsync.NewMapOf[string, *lockEntry]()}
}

// Lock blocks until the key is free and returns the matching unlock. The
// returned func is safe to call more than once.
func (l *Locker) Lock(key string) func() {
	entry, _ := l.locks.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			old = &lockEntry{}
		}
		old.refs++
		return old, false
	})
	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.locks.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
				if !loaded {
					return old, true
				}
				old.refs--
				return old, old.refs <= 0
			})
		})
	}
}
