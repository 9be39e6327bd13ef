package fs

import "sync"

// / Sleeplock_t is a lock meant to be held across a blocking disk
// / operation, where a spinlock would needlessly burn a CPU. It is a thin
// / wrapper over sync.Mutex: this simulation has no real disk latency to
// / hide, but the type exists so callers read the way
// / original_source/kernel/file.c's ilock/iunlock call sites do.
type Sleeplock_t struct {
	mu sync.Mutex
}

// / Acquire blocks until the lock is held.
func (l *Sleeplock_t) Acquire() { l.mu.Lock() }

// / Release releases the lock.
func (l *Sleeplock_t) Release() { l.mu.Unlock() }
