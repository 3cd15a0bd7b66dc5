package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/attendx/internal/embeddings"
	"github.com/kozaktomas/attendx/internal/facematch"
)

// PersonRepository stores the embeddings store in PostgreSQL. It satisfies
// embeddings.Repository.
type PersonRepository struct {
	pool *Pool
}

// NewPersonRepository creates a new PostgreSQL person repository.
func NewPersonRepository(pool *Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

var _ embeddings.Repository = (*PersonRepository)(nil)

// Save replaces all stored people with the contents of s.
func (r *PersonRepository) Save(ctx context.Context, s *embeddings.Store) error {
	return r.pool.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM persons"); err != nil {
			return fmt.Errorf("clear persons: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO store_meta (id, version, model, dim, created_at)
			VALUES (1, $1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				version = EXCLUDED.version,
				model = EXCLUDED.model,
				dim = EXCLUDED.dim,
				created_at = EXCLUDED.created_at
		`, embeddings.FormatVersion, s.Model, s.Dim, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("save store meta: %w", err)
		}

		for pos, p := range s.People {
			var id int64
			err := tx.QueryRowContext(ctx,
				"INSERT INTO persons (name, position) VALUES ($1, $2) RETURNING id",
				p.Name, pos,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert person %s: %w", p.Name, err)
			}

			for idx, v := range p.Vectors {
				_, err := tx.ExecContext(ctx,
					"INSERT INTO person_vectors (person_id, idx, embedding) VALUES ($1, $2, $3)",
					id, idx, pgvector.NewVector(v),
				)
				if err != nil {
					return fmt.Errorf("insert vector %d of %s: %w", idx, p.Name, err)
				}
			}
		}
		return nil
	})
}

// Load reads the store, keeping the registration order.
func (r *PersonRepository) Load(ctx context.Context) (*embeddings.Store, error) {
	s := &embeddings.Store{}
	err := r.pool.QueryRow(ctx,
		"SELECT version, model, dim, created_at FROM store_meta WHERE id = 1",
	).Scan(&s.Version, &s.Model, &s.Dim, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no people registered in the database, run \"attendx register\" first: %w", embeddings.ErrStoreNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query store meta: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.name, v.embedding
		FROM persons p
		JOIN person_vectors v ON v.person_id = p.id
		ORDER BY p.position, v.idx
	`)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var vec pgvector.Vector
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("scan person vector: %w", err)
		}
		last := len(s.People) - 1
		if last < 0 || s.People[last].Name != name {
			s.People = append(s.People, facematch.Person{Name: name})
			last++
		}
		s.People[last].Vectors = append(s.People[last].Vectors, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return s, nil
}

// Count returns the number of registered people.
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}
