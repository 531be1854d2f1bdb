package relay

import "sync"

// ConnID identifies one transport connection for its lifetime.
type ConnID uint64

// IDAllocator hands out connection ids. Released ids are not reused.
type IDAllocator struct {
	next  ConnID
	inUse map[ConnID]bool
	mu    sync.Mutex
}

// NewIDAllocator creates an allocator starting at 1; id 0 is reserved.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		next:  1,
		inUse: make(map[ConnID]bool),
	}
}

// Allocate returns a new unique id.
func (a *IDAllocator) Allocate() ConnID {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.next == 0 || a.inUse[a.next] {
		a.next++
	}
	id := a.next
	a.next++
	a.inUse[id] = true
	return id
}

// Release marks an id as no longer in use.
func (a *IDAllocator) Release(id ConnID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, id)
}

// AllocatedCount returns the number of ids currently in use.
func (a *IDAllocator) AllocatedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}
