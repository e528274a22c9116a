package originality

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	engine "github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectCheck = `SELECT id, file_name, status, COALESCE(error_message, ''), score_threshold, originality_score, COALESCE(plagiarism_level, ''), total_chunks, flagged_chunks, matches_summary, created_at, updated_at FROM thesis_checks`

func (r *PostgresRepo) Save(ctx context.Context, c *Check, pages []text.Page) error {
	raw, err := json.Marshal(pages)
	if err != nil {
		return err
	}
	query := `INSERT INTO thesis_checks (file_name, status, score_threshold, pages) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, c.FileName, c.Status, c.ScoreThreshold, raw).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCheck(s scanner) (*Check, error) {
	c := &Check{}
	var score sql.NullFloat64
	var summary []byte
	if err := s.Scan(&c.ID, &c.FileName, &c.Status, &c.Error, &c.ScoreThreshold, &score, &c.PlagiarismLevel,
		&c.TotalChunks, &c.FlaggedChunks, &summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if score.Valid {
		c.OriginalityScore = &score.Float64
	}
	if len(summary) > 0 {
		c.MatchesSummary = json.RawMessage(summary)
	}
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Check, error) {
	c, err := scanCheck(r.db.QueryRowContext(ctx, selectCheck+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Check, error) {
	rows, err := r.db.QueryContext(ctx, selectCheck+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM thesis_checks WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) GetPages(ctx context.Context, id string) ([]text.Page, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT pages FROM thesis_checks WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var pages []text.Page
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *PostgresRepo) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE thesis_checks SET status = 'processing', error_message = NULL, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// ResetPending clears a failed check so it can be queued again.
func (r *PostgresRepo) ResetPending(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE thesis_checks SET status = 'pending', error_message = NULL, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) Complete(ctx context.Context, id string, res *engine.Result) error {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return err
	}
	query := `UPDATE thesis_checks SET status = 'completed', error_message = NULL, originality_score = $1, plagiarism_level = $2,
		total_chunks = $3, flagged_chunks = $4, matches_summary = $5, updated_at = NOW() WHERE id = $6`
	_, err = r.db.ExecContext(ctx, query, res.OriginalityScore, string(res.Level), res.TotalChunks, res.FlaggedChunks, summary, id)
	return err
}

func (r *PostgresRepo) Fail(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE thesis_checks SET status = 'failed', error_message = $1, updated_at = NOW() WHERE id = $2`, message, id)
	return err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM thesis_checks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
