package job

import (
	"sort"
	"sync"
)

// Registry allocates job ids and records which jobs are still live.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	next ID
	gen  uint64
	live map[ID]uint64
}

// Lease pins an id to the registry generation that issued it. Reset
// starts a new generation, so a lease taken before it never matches a
// reused id.
type Lease struct {
	ID  ID
	gen uint64
}

// NewRegistry creates an empty registry whose first id is 1.
func NewRegistry() *Registry {
	return &Registry{
		next: 1,
		live: make(map[ID]uint64),
	}
}

// Create allocates the next id and marks it live.
func (r *Registry) Create() ID {
	return r.Acquire().ID
}

// Acquire is Create for owners that must outlive a Reset, such as a
// tick loop.
func (r *Registry) Acquire() Lease {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.live[id] = r.gen
	return Lease{ID: id, gen: r.gen}
}

// Held reports whether the leased job is still live in the generation
// that issued it.
func (r *Registry) Held(l Lease) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.live[l.ID]
	return ok && gen == l.gen
}

// Release drops the leased job. A lease from an earlier generation
// leaves a reused id alone.
func (r *Registry) Release(l Lease) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen, ok := r.live[l.ID]; ok && gen == l.gen {
		delete(r.live, l.ID)
	}
}

// IsLive reports whether id has been created and not yet cancelled or
// removed.
func (r *Registry) IsLive(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[id]
	return ok
}

// Cancel marks a single job dead. It reports whether the job was live.
func (r *Registry) Cancel(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[id]; !ok {
		return false
	}
	delete(r.live, id)
	return true
}

// Remove drops id after its loop has terminated. Removing an unknown or
// already cancelled id is a no-op.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// CancelAll marks every job dead. The id counter is left untouched.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.live)
}

// Reset clears every job and rewinds the counter so the next Create
// returns 1 again. Loops still running on old leases see their job as
// dead.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.live)
	r.next = 1
	r.gen++
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Live returns the live job ids in ascending order.
func (r *Registry) Live() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ID, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
