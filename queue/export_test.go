package queue

// SeedNext parks the allocator counter so boundary tests can force the
// 32-bit wrap without issuing four billion allocations.
func SeedNext(q *Queue, v uint64) {
	q.mu.Lock()
	q.next = v
	q.mu.Unlock()
}
