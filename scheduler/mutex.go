package scheduler

// Mutex is a mutual exclusion lock for tasks of one scheduler. A task that
// finds it locked parks until the holder unlocks it; waiters get the lock in
// the order they arrived.
//
// The zero value is an unlocked mutex. A locked Mutex is not associated with a
// particular task: one task may lock it and another unlock it.
type Mutex struct {
	locked  bool
	waiters WaitQueue
}

// Lock locks m. If the lock is already in use, the task parks until it is
// handed the lock.
func (m *Mutex) Lock(f *Fiber) {
	if !m.locked {
		m.locked = true
		return
	}
	// Unlock hands the lock over directly, so it is held when Wait returns.
	f.Wait(&m.waiters)
}

// TryLock tries to lock m and reports whether it succeeded. It never parks,
// so it is also usable from the main context.
func (m *Mutex) TryLock() bool {
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock unlocks m, or hands it to the longest waiting task. It is a run-time
// error if m is not locked on entry to Unlock.
func (m *Mutex) Unlock() {
	if !m.locked {
		panic("fibers: unlock of unlocked mutex")
	}
	if m.waiters.Wake() {
		// Stays locked: the woken task owns it now.
		return
	}
	m.locked = false
}

// Locked reports whether m is held.
func (m *Mutex) Locked() bool {
	return m.locked
}
