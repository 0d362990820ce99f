package stripe

import "sync"

// LockManager manages per-session locks so that redeliveries of the same
// checkout session are processed one at a time while deliveries for
// different sessions proceed in parallel.
type LockManager struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// LockSession acquires the lock for the given checkout session id and
// returns the function that releases it.
func (lm *LockManager) LockSession(sessionID string) func() {
	lockAny, _ := lm.locks.LoadOrStore(sessionID, &sync.Mutex{})
	lock, ok := lockAny.(*sync.Mutex)
	if !ok {
		// only *sync.Mutex values are ever stored
		panic("unexpected type in lock manager")
	}
	lock.Lock()
	return lock.Unlock
}

// CleanupLocks drops locks that are not currently held, bounding memory on
// long-running processes.
func (lm *LockManager) CleanupLocks() {
	lm.locks.Range(func(key, value any) bool {
		lock, ok := value.(*sync.Mutex)
		if !ok {
			return true
		}
		if lock.TryLock() {
			lock.Unlock()
			lm.locks.Delete(key)
		}
		return true
	})
}
