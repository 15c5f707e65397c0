package persona

// Store exposes persona retrieval for handlers and the chat service.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Resolve(id string) (Persona, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns a copy of the persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Resolve is FindByID with an empty id meaning DefaultID, falling back to the
// first configured persona when DefaultID is absent.
func (s *MemoryStore) Resolve(id string) (Persona, bool) {
	if id != "" {
		return s.FindByID(id)
	}
	if p, ok := s.FindByID(DefaultID); ok {
		return p, true
	}
	if len(s.items) == 0 {
		return Persona{}, false
	}
	return s.items[0], true
}
