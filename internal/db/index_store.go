package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/skillsense/internal/index"
	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/pgvector/pgvector-go"
)

// ErrIndexNotFound is returned when no index has been stored for a model.
var ErrIndexNotFound = errors.New("no stored index for model")

// IndexHeader describes a stored index.
type IndexHeader struct {
	Model           string
	Dimension       int
	OntologyVersion string
	BuiltAt         time.Time
}

// SaveIndex replaces the stored vectors for idx.Model() in one transaction.
func (db *DB) SaveIndex(ctx context.Context, idx *index.Index) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO embedding_indexes (model, dimension, ontology_version, built_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (model) DO UPDATE SET dimension = $2, ontology_version = $3, built_at = $4`,
		idx.Model(), idx.Dimension(), idx.OntologyVersion(), idx.BuiltAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save index header: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM skill_embeddings WHERE model = $1`, idx.Model()); err != nil {
		return fmt.Errorf("failed to clear previous vectors: %w", err)
	}

	batch := &pgx.Batch{}
	for _, entry := range idx.Entries() {
		batch.Queue(
			`INSERT INTO skill_embeddings (model, skill_id, embedding) VALUES ($1, $2, $3::vector)`,
			idx.Model(), entry.SkillID, pgvector.NewVector(entry.Vector),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save skill vectors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// GetIndexHeader returns the metadata of the index stored for model.
func (db *DB) GetIndexHeader(ctx context.Context, model string) (*IndexHeader, error) {
	h := IndexHeader{Model: model}
	err := db.pool.QueryRow(ctx,
		`SELECT dimension, ontology_version, built_at FROM embedding_indexes WHERE model = $1`,
		model,
	).Scan(&h.Dimension, &h.OntologyVersion, &h.BuiltAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w %q", ErrIndexNotFound, model)
		}
		return nil, fmt.Errorf("failed to get index header: %w", err)
	}
	return &h, nil
}

// LoadIndex reads the vectors stored for model and validates them against ont.
func (db *DB) LoadIndex(ctx context.Context, ont *ontology.Ontology, model string, dim int) (*index.Index, error) {
	h, err := db.GetIndexHeader(ctx, model)
	if err != nil {
		return nil, err
	}
	if dim > 0 && h.Dimension != dim {
		return nil, &index.MismatchError{Field: "dimension", Got: fmt.Sprint(h.Dimension), Want: fmt.Sprint(dim)}
	}
	if h.OntologyVersion != ont.Version() {
		return nil, &index.MismatchError{Field: "ontology_version", Got: h.OntologyVersion, Want: ont.Version()}
	}

	rows, err := db.pool.Query(ctx,
		`SELECT skill_id, embedding::text FROM skill_embeddings WHERE model = $1 ORDER BY skill_id`,
		model,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query skill vectors: %w", err)
	}
	defer rows.Close()

	var entries []index.Entry
	for rows.Next() {
		var (
			skillID string
			vec     pgvector.Vector
		)
		if err := rows.Scan(&skillID, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan skill vector: %w", err)
		}
		entries = append(entries, index.Entry{SkillID: skillID, Vector: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skill vectors: %w", err)
	}

	idx, err := index.FromEntries(ont, h.Model, h.Dimension, h.BuiltAt, entries)
	if err != nil {
		return nil, fmt.Errorf("stored index for %s is stale: %w", model, err)
	}
	return idx, nil
}
