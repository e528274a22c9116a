package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectSettings = `SELECT id, chunk_size, chunk_overlap, top_k, score_threshold, temperature, num_ctx,
	candidate_multiplier, candidate_threshold_factor, max_chunks_per_doc, enable_reflection, enable_query_expansion
	FROM settings WHERE id = 1`

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	err := r.db.QueryRowContext(ctx, selectSettings).Scan(
		&s.ID, &s.ChunkSize, &s.ChunkOverlap, &s.TopK, &s.ScoreThreshold, &s.Temperature, &s.NumCtx,
		&s.CandidateMultiplier, &s.CandidateThresholdFactor, &s.MaxChunksPerDoc, &s.EnableReflection, &s.EnableQueryExpansion,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `UPDATE settings SET chunk_size = $1, chunk_overlap = $2, top_k = $3, score_threshold = $4,
		temperature = $5, num_ctx = $6, candidate_multiplier = $7, candidate_threshold_factor = $8,
		max_chunks_per_doc = $9, enable_reflection = $10, enable_query_expansion = $11, updated_at = NOW()
		WHERE id = 1`
	_, err := r.db.ExecContext(ctx, query, s.args()...)
	return err
}

func (r *PostgresRepo) Seed(ctx context.Context, s *Settings) error {
	query := `INSERT INTO settings (id, chunk_size, chunk_overlap, top_k, score_threshold, temperature, num_ctx,
		candidate_multiplier, candidate_threshold_factor, max_chunks_per_doc, enable_reflection, enable_query_expansion)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, s.args()...)
	return err
}

func (s *Settings) args() []interface{} {
	return []interface{}{
		s.ChunkSize, s.ChunkOverlap, s.TopK, s.ScoreThreshold, s.Temperature, s.NumCtx,
		s.CandidateMultiplier, s.CandidateThresholdFactor, s.MaxChunksPerDoc, s.EnableReflection, s.EnableQueryExpansion,
	}
}
