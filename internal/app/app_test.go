package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
)

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(topic string, body []byte) error {
	p.topics = append(p.topics, topic)
	return nil
}

func newTestApp(t *testing.T) (*App, sqlmock.Sqlmock, *recordingPublisher) {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		QueryLogPath:         t.TempDir() + "/query.log",
		OriginalityThreshold: 0.7,
		UnitTimeoutMins:      1,
	}
	pub := &recordingPublisher{}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	a, err := New(cfg, db, &MockVectorStore{}, pub, logger)
	require.NoError(t, err)
	return a, m, pub
}

func TestNew(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.Settings)
	assert.NotNil(t, a.IngestConsumer)
	assert.NotNil(t, a.OriginalityConsumer)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RejectsNonSQLDatabase(t *testing.T) {
	_, err := New(&config.Config{}, nil, &MockVectorStore{}, &recordingPublisher{}, slog.Default())
	assert.Error(t, err)
}

func TestRoutes_CreateDocumentEnqueuesIngestion(t *testing.T) {
	a, m, pub := newTestApp(t)

	m.ExpectBegin()
	m.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("d1", time.Now(), time.Now()))
	m.ExpectPrepare(regexp.QuoteMeta("INSERT INTO document_pages"))
	m.ExpectExec(regexp.QuoteMeta("INSERT INTO document_pages")).WillReturnResult(sqlmock.NewResult(1, 1))
	m.ExpectCommit()

	body, _ := json.Marshal(map[string]any{
		"title": "Reglamento de Grados",
		"pages": []map[string]any{{"page": 1, "content": "Artículo 1. El bachiller se obtiene..."}},
	})
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(body))
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{config.TopicDocumentIngest}, pub.topics)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestRoutes_CORSPreflight(t *testing.T) {
	a, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/settings", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
