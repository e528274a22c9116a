package category

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

const selectColumns = `SELECT id, name, slug, description, is_active, document_count FROM categories`

func (r *PostgresRepo) List(ctx context.Context) ([]Category, error) {
	return r.query(ctx, selectColumns+` ORDER BY name`)
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Category, error) {
	return r.query(ctx, selectColumns+` WHERE is_active = TRUE ORDER BY name`)
}

func (r *PostgresRepo) query(ctx context.Context, query string) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.DocumentCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Save(ctx context.Context, c *Category) error {
	query := `INSERT INTO categories (name, slug, description, is_active) VALUES ($1, $2, $3, $4) RETURNING id, document_count`
	return r.db.QueryRowContext(ctx, query, c.Name, c.Slug, c.Description, c.IsActive).Scan(&c.ID, &c.DocumentCount)
}

func (r *PostgresRepo) RefreshDocumentCount(ctx context.Context, id string) error {
	query := `UPDATE categories SET document_count = (
		SELECT COUNT(*) FROM documents WHERE category_id = $1 AND processing_status = 'completed'
	), updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
