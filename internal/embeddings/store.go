// Package embeddings holds the known-person embedding store and the batch
// registration step that builds it.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/attendx/internal/facematch"
)

// FormatVersion is written into every persisted store.
const FormatVersion = 1

// Store is the ordered list of registered people. Order is registration
// order and decides exact ties during matching.
type Store struct {
	Version   int
	Model     string
	Dim       int
	CreatedAt time.Time
	People    []facematch.Person
}

// NewStore creates an empty store for vectors of the given dimension.
func NewStore(model string, dim int) *Store {
	return &Store{
		Version:   FormatVersion,
		Model:     model,
		Dim:       dim,
		CreatedAt: time.Now(),
	}
}

// Len returns the number of people in the store.
func (s *Store) Len() int {
	return len(s.People)
}

// Find returns the person with the given name.
func (s *Store) Find(name string) (facematch.Person, bool) {
	for _, p := range s.People {
		if p.Name == name {
			return p, true
		}
	}
	return facematch.Person{}, false
}

// Add appends a person, or replaces the vectors of an existing one in place.
// Every vector must have the store's dimension; a zero Dim is taken from the
// first vector added.
func (s *Store) Add(p facematch.Person) error {
	if len(p.Vectors) == 0 {
		return fmt.Errorf("person %q has no vectors", p.Name)
	}
	if s.Dim == 0 {
		s.Dim = len(p.Vectors[0])
	}
	for i, v := range p.Vectors {
		if len(v) != s.Dim {
			return fmt.Errorf("person %q vector %d: %w (got %d, store has %d)",
				p.Name, i, facematch.ErrDimMismatch, len(v), s.Dim)
		}
	}

	for i := range s.People {
		if s.People[i].Name == p.Name {
			s.People[i].Vectors = p.Vectors
			return nil
		}
	}
	s.People = append(s.People, p)
	return nil
}

// Names returns the registered names in store order.
func (s *Store) Names() []string {
	names := make([]string, len(s.People))
	for i, p := range s.People {
		names[i] = p.Name
	}
	return names
}

// Repository persists a Store.
type Repository interface {
	// Load returns the persisted store, or an error wrapping ErrStoreNotFound
	// when nothing has been registered yet.
	Load(ctx context.Context) (*Store, error)
	// Save replaces the persisted store.
	Save(ctx context.Context, s *Store) error
}
