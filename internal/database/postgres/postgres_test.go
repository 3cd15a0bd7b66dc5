//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/attendx/internal/config"
	"github.com/kozaktomas/attendx/internal/embeddings"
	"github.com/kozaktomas/attendx/internal/facematch"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestMigrate(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_initial.sql" {
		t.Errorf("unexpected migrations: %v", versions)
	}

	// second run is a no-op
	applied, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing to apply, got %v", applied)
	}
}

func TestPersonRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewPersonRepository(pool)

	t.Run("LoadEmpty", func(t *testing.T) {
		_, err := repo.Load(ctx)
		if !errors.Is(err, embeddings.ErrStoreNotFound) {
			t.Fatalf("expected ErrStoreNotFound, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := embeddings.NewStore("buffalo_l", 3)
		for _, p := range []facematch.Person{
			{Name: "zoe", Vectors: [][]float32{{1, 0, 0}}},
			{Name: "adam", Vectors: [][]float32{{0, 1, 0}, {0, 0.6, 0.8}}},
		} {
			if err := s.Add(p); err != nil {
				t.Fatal(err)
			}
		}
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Model != "buffalo_l" || loaded.Dim != 3 {
			t.Errorf("unexpected meta: %+v", loaded)
		}
		names := loaded.Names()
		if len(names) != 2 || names[0] != "zoe" || names[1] != "adam" {
			t.Errorf("order not preserved: %v", names)
		}
		adam, _ := loaded.Find("adam")
		if len(adam.Vectors) != 2 || adam.Vectors[1][2] != 0.8 {
			t.Errorf("vectors not preserved: %v", adam.Vectors)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		s := embeddings.NewStore("buffalo_l", 3)
		if err := s.Add(facematch.Person{Name: "eve", Vectors: [][]float32{{0, 0, 1}}}); err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("Count = %d; want 1", count)
		}
	})
}

func TestMarkRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewMarkRepository(pool)
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"alice", "bob"} {
		if err := repo.RecordMark(ctx, "Math", name, day.Add(time.Duration(9+i)*time.Hour), 0.8); err != nil {
			t.Fatalf("RecordMark failed: %v", err)
		}
	}
	if err := repo.RecordMark(ctx, "Physics", "alice", day.Add(9*time.Hour), 0.7); err != nil {
		t.Fatal(err)
	}

	marks, err := repo.List(ctx, "Math", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(marks) != 2 || marks[0].Name != "alice" || marks[1].Name != "bob" {
		t.Errorf("unexpected marks: %+v", marks)
	}
	if !marks[0].MarkedAt.Equal(day.Add(9 * time.Hour)) {
		t.Errorf("MarkedAt = %v", marks[0].MarkedAt)
	}
}
