package thinker

// Store exposes roster retrieval for HTTP handlers and the orchestrator.
type Store interface {
	List() []Thinker
	FindByID(id string) (Thinker, bool)
}

// MemoryStore implements Store with an in-memory slice, suitable for MVP.
type MemoryStore struct {
	items []Thinker
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied thinkers.
func NewMemoryStore(items []Thinker) *MemoryStore {
	return &MemoryStore{items: append([]Thinker(nil), items...)}
}

// List returns the roster.
func (s *MemoryStore) List() []Thinker {
	return append([]Thinker(nil), s.items...)
}

// FindByID looks up a thinker by identifier.
func (s *MemoryStore) FindByID(id string) (Thinker, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Thinker{}, false
}
