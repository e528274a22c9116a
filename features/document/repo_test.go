package document

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
)

var docColumns = []string{"id", "title", "category_id", "processing_status", "processing_error", "chunk_count", "summary", "created_at", "updated_at"}

func TestPostgresRepo_Save(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	m.ExpectBegin()
	m.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents (title, category_id, processing_status)")).
		WithArgs("Reglamento", nil, StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("d1", now, now))
	prep := m.ExpectPrepare(regexp.QuoteMeta("INSERT INTO document_pages (document_id, page, content)"))
	prep.ExpectExec().WithArgs("d1", 1, "uno").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("d1", 2, "dos").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	d := &Document{Title: "Reglamento", Status: StatusPending}
	err = NewPostgresRepo(db).Save(context.Background(), d, []text.Page{{Content: "uno", Page: 1}, {Content: "dos", Page: 2}})
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPostgresRepo_Save_RollsBack(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	m.ExpectBegin()
	m.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("d1", now, now))
	prep := m.ExpectPrepare(regexp.QuoteMeta("INSERT INTO document_pages"))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	m.ExpectRollback()

	err = NewPostgresRepo(db).Save(context.Background(), &Document{Title: "x", CategoryID: "c1"}, []text.Page{{Content: "uno", Page: 1}})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	m.ExpectQuery(regexp.QuoteMeta("SELECT id, title, COALESCE(category_id::text, '')")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow("d1", "Reglamento", "c1", StatusCompleted, "", 12, "Resumen", now, now))
	m.ExpectQuery(regexp.QuoteMeta("SELECT id, title")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(docColumns))

	repo := NewPostgresRepo(db)
	d, err := repo.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 12, d.ChunkCount)
	assert.Equal(t, "c1", d.CategoryID)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPostgresRepo_StatusTransitions(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m.ExpectExec(regexp.QuoteMeta("UPDATE documents SET processing_status = 'processing'")).WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec(regexp.QuoteMeta("UPDATE documents SET processing_status = 'completed', chunk_count = $1")).WithArgs(7, "d1").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec(regexp.QuoteMeta("UPDATE documents SET processing_status = 'failed', processing_error = $1")).WithArgs("boom", "d1").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec(regexp.QuoteMeta("UPDATE documents SET processing_status = 'pending', processing_error = NULL, chunk_count = 0")).WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.MarkProcessing(ctx, "d1"))
	require.NoError(t, repo.MarkCompleted(ctx, "d1", 7))
	require.NoError(t, repo.MarkFailed(ctx, "d1", "boom"))
	require.NoError(t, repo.ResetForReprocess(ctx, "d1"))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPostgresRepo_GetPages(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m.ExpectQuery(regexp.QuoteMeta("SELECT page, content FROM document_pages WHERE document_id = $1 ORDER BY page")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"page", "content"}).AddRow(1, "uno").AddRow(2, "dos"))

	pages, err := NewPostgresRepo(db).GetPages(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, []text.Page{{Content: "uno", Page: 1}, {Content: "dos", Page: 2}}, pages)
}

func TestPostgresRepo_CountByStatus(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m.ExpectQuery(regexp.QuoteMeta("SELECT processing_status, COUNT(*) FROM documents GROUP BY processing_status")).
		WillReturnRows(sqlmock.NewRows([]string{"processing_status", "count"}).AddRow("completed", 3).AddRow("failed", 1))

	counts, err := NewPostgresRepo(db).CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"completed": 3, "failed": 1}, counts)
}
