package postgres

import (
	"context"
	"fmt"
	"time"
)

// Mark is one logged attendance mark.
type Mark struct {
	ID         int64
	Subject    string
	Name       string
	MarkedAt   time.Time
	Similarity float64
}

// MarkRepository keeps an append-only log of attendance marks.
type MarkRepository struct {
	pool *Pool
}

// NewMarkRepository creates a new PostgreSQL mark repository.
func NewMarkRepository(pool *Pool) *MarkRepository {
	return &MarkRepository{pool: pool}
}

// RecordMark appends a mark to the log.
func (r *MarkRepository) RecordMark(ctx context.Context, subject, name string, at time.Time, similarity float64) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO marks (subject, name, marked_at, similarity) VALUES ($1, $2, $3, $4)",
		subject, name, at, similarity,
	)
	if err != nil {
		return fmt.Errorf("record mark: %w", err)
	}
	return nil
}

// List returns the marks of a subject within [from, to), oldest first.
func (r *MarkRepository) List(ctx context.Context, subject string, from, to time.Time) ([]Mark, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject, name, marked_at, similarity
		FROM marks
		WHERE subject = $1 AND marked_at >= $2 AND marked_at < $3
		ORDER BY marked_at, id
	`, subject, from, to)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()

	var marks []Mark
	for rows.Next() {
		var m Mark
		if err := rows.Scan(&m.ID, &m.Subject, &m.Name, &m.MarkedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marks: %w", err)
	}
	return marks, nil
}
