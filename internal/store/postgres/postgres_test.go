//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/store"
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

func TestProfileRepository_Integration(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewProfileRepository(pool)

	embedding := func(seed float32) geometry.Embedding {
		e := make(geometry.Embedding, 128)
		for i := range e {
			e[i] = seed + float32(i)/128
		}
		return e
	}

	t.Run("EmptyLoad", func(t *testing.T) {
		profiles, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(profiles) != 0 {
			t.Errorf("expected no profiles, got %d", len(profiles))
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		input := []store.Profile{
			{ID: "bbbb0001", Name: "Zed", Color: "#111111", SampleCount: 2, CreatedAt: time.Now().UTC(),
				Embeddings: []geometry.Embedding{embedding(0), embedding(1)}},
			{ID: "aaaa0002", Name: "Amy", Color: "#222222", SampleCount: 1, CreatedAt: time.Now().UTC(),
				Embeddings: []geometry.Embedding{embedding(2)}},
		}
		if err := repo.Save(ctx, input); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got) != 2 || got[0].Name != "Zed" || got[1].Name != "Amy" {
			t.Fatalf("insertion order not preserved: %+v", got)
		}
		if len(got[0].Embeddings) != 2 || got[0].Embeddings[1][0] != 1 {
			t.Errorf("embedding order not preserved")
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		if err := repo.Save(ctx, []store.Profile{{ID: "cccc0003", Name: "Cat", Color: "#333333", CreatedAt: time.Now()}}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "cccc0003" || len(got[0].Embeddings) != 0 {
			t.Errorf("expected only Cat, got %+v", got)
		}
	})
}
