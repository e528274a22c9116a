package job

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumns = []string{"id", "reference_id", "topic", "payload", "error", "retries", "created_at"}

func TestPostgresRepo_Save(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	m.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_jobs (reference_id, topic, payload, error)")).
		WithArgs("d1", "document.ingest", []byte(`{"document_id":"d1"}`), "embed chunks: quota").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).AddRow("j1", now, 2))

	j := &Job{ReferenceID: "d1", Topic: "document.ingest", Payload: json.RawMessage(`{"document_id":"d1"}`), Error: "embed chunks: quota"}
	require.NoError(t, NewPostgresRepo(db).Save(context.Background(), j))
	assert.Equal(t, "j1", j.ID)
	assert.Equal(t, 2, j.Retries, "a unit that keeps failing reuses its row")
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		filter Filter
		query  string
		args   []driver.Value
	}{
		{"All", Filter{}, selectJob + " ORDER BY created_at DESC", nil},
		{"By Topic", Filter{Topic: "originality.check"}, selectJob + " WHERE topic = $1 ORDER BY created_at DESC", []driver.Value{"originality.check"}},
		{"By Topic And Reference", Filter{Topic: "document.ingest", ReferenceID: "d1"},
			selectJob + " WHERE topic = $1 AND reference_id = $2 ORDER BY created_at DESC", []driver.Value{"document.ingest", "d1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, m, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			m.ExpectQuery(regexp.QuoteMeta(tt.query)).WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows(jobColumns).
					AddRow("j1", "d1", "document.ingest", []byte(`{"document_id":"d1"}`), "boom", 1, now))

			jobs, err := NewPostgresRepo(db).List(context.Background(), tt.filter)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.JSONEq(t, `{"document_id":"d1"}`, string(jobs[0].Payload))
			assert.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_Get_NotFound(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m.ExpectQuery(regexp.QuoteMeta(selectJob + " WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = NewPostgresRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_Count(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewPostgresRepo(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
