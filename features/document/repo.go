package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectDocument = `SELECT id, title, COALESCE(category_id::text, ''), processing_status, COALESCE(processing_error, ''), chunk_count, COALESCE(summary, ''), created_at, updated_at FROM documents`

// Save inserts the document and its pages in one transaction.
func (r *PostgresRepo) Save(ctx context.Context, d *Document, pages []text.Page) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO documents (title, category_id, processing_status) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	if err := tx.QueryRowContext(ctx, query, d.Title, nullable(d.CategoryID), d.Status).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_pages (document_id, page, content) VALUES ($1, $2, $3)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, d.ID, p.Page, p.Content); err != nil {
			return fmt.Errorf("insert page %d: %w", p.Page, err)
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	d := &Document{}
	err := r.db.QueryRowContext(ctx, selectDocument+` WHERE id = $1`, id).
		Scan(&d.ID, &d.Title, &d.CategoryID, &d.Status, &d.Error, &d.ChunkCount, &d.Summary, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, selectDocument+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.CategoryID, &d.Status, &d.Error, &d.ChunkCount, &d.Summary, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) GetPages(ctx context.Context, id string) ([]text.Page, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT page, content FROM document_pages WHERE document_id = $1 ORDER BY page`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []text.Page
	for rows.Next() {
		var p text.Page
		if err := rows.Scan(&p.Page, &p.Content); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *PostgresRepo) ResetForReprocess(ctx context.Context, id string) error {
	query := `UPDATE documents SET processing_status = 'pending', processing_error = NULL, chunk_count = 0, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) MarkProcessing(ctx context.Context, id string) error {
	query := `UPDATE documents SET processing_status = 'processing', processing_error = NULL, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id string, chunkCount int) error {
	query := `UPDATE documents SET processing_status = 'completed', chunk_count = $1, processing_error = NULL, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, chunkCount, id)
	return err
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, message string) error {
	query := `UPDATE documents SET processing_status = 'failed', processing_error = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, message, id)
	return err
}

func (r *PostgresRepo) SetCategory(ctx context.Context, id, categoryID string) error {
	query := `UPDATE documents SET category_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, categoryID, id)
	return err
}

func (r *PostgresRepo) SetSummary(ctx context.Context, id, summary string) error {
	query := `UPDATE documents SET summary = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, summary, id)
	return err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT processing_status, COUNT(*) FROM documents GROUP BY processing_status`)
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

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
