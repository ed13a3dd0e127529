package threadloom

import "sync"

// LockRegistry serializes message processing per thread. Locks are created
// lazily on first use and live for the registry's lifetime; registry
// insertion is guarded by its own mutex so two callers racing on a new
// thread id always end up sharing one lock. Distinct threads never contend.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockRegistry creates an empty lock registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the caller holds the thread's exclusive lock and
// returns the release function.
func (r *LockRegistry) Acquire(threadID string) (release func()) {
	lock := r.lockFor(threadID)
	lock.Lock()
	return lock.Unlock
}

func (r *LockRegistry) lockFor(threadID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[threadID] = lock
	}
	return lock
}
