package retrieval

import "sync/atomic"

// MemoryCorpus is a swappable chunk snapshot. Readers never lock; the owner
// publishes a new snapshot with Replace.
type MemoryCorpus struct {
	snapshot atomic.Pointer[[]Chunk]
}

func NewMemoryCorpus(chunks []Chunk) *MemoryCorpus {
	c := &MemoryCorpus{}
	c.Replace(chunks)
	return c
}

func (c *MemoryCorpus) Replace(chunks []Chunk) {
	snapshot := make([]Chunk, len(chunks))
	copy(snapshot, chunks)
	c.snapshot.Store(&snapshot)
}

// Chunks returns the current snapshot. Callers must not modify it.
func (c *MemoryCorpus) Chunks() []Chunk {
	p := c.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}
