package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/store"
)

const (
	selectProfilesSQL = `SELECT id, name, color, sample_count, thumbnail, created_at FROM profiles ORDER BY position`

	selectEmbeddingsSQL = `SELECT e.profile_id, e.embedding FROM profile_embeddings e JOIN profiles p ON p.id = e.profile_id ORDER BY p.position, e.position`

	deleteProfilesSQL = `DELETE FROM profiles`

	insertProfileSQL = `INSERT INTO profiles (id, position, name, color, sample_count, thumbnail, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertEmbeddingSQL = `INSERT INTO profile_embeddings (profile_id, position, embedding) VALUES ($1, $2, $3)`
)

// ProfileRepository stores the profile set in PostgreSQL. It implements store.Persistence.
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Load reads all profiles in insertion order, each with its embeddings in capture order.
func (r *ProfileRepository) Load(ctx context.Context) ([]store.Profile, error) {
	rows, err := r.pool.Query(ctx, selectProfilesSQL)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []store.Profile
	byID := make(map[string]int)
	for rows.Next() {
		var p store.Profile
		var createdAt time.Time
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.SampleCount, &p.Thumbnail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.CreatedAt = createdAt.UTC()
		byID[p.ID] = len(profiles)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	embRows, err := r.pool.Query(ctx, selectEmbeddingsSQL)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer embRows.Close()

	for embRows.Next() {
		var profileID string
		var vec pgvector.Vector
		if err := embRows.Scan(&profileID, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		idx, ok := byID[profileID]
		if !ok {
			continue
		}
		profiles[idx].Embeddings = append(profiles[idx].Embeddings, geometry.Embedding(vec.Slice()))
	}
	if err := embRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return profiles, nil
}

// Save replaces the stored set in a single transaction.
func (r *ProfileRepository) Save(ctx context.Context, profiles []store.Profile) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, deleteProfilesSQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete profiles: %w", err)
	}

	for i, p := range profiles {
		if _, err := tx.ExecContext(ctx, insertProfileSQL,
			p.ID, i, p.Name, p.Color, p.SampleCount, p.Thumbnail, p.CreatedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert profile %s: %w", p.ID, err)
		}

		for j, e := range p.Embeddings {
			if _, err := tx.ExecContext(ctx, insertEmbeddingSQL, p.ID, j, pgvector.NewVector(e)); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert embedding %d of profile %s: %w", j, p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profiles: %w", err)
	}
	return nil
}
