package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type batchRequest struct {
	Requests []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"requests"`
}

// newEmbeddingServer answers with vectors whose first value is the length of
// the embedded text, so callers can check ordering.
func newEmbeddingServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	vector := func(text string) []float32 {
		v := make([]float32, dim)
		v[0] = float32(len(text))
		return v
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "batchEmbedContents") {
			var req batchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			var embs []map[string]interface{}
			for _, rq := range req.Requests {
				embs = append(embs, map[string]interface{}{"values": vector(rq.Content.Parts[0].Text)})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embs})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": vector("query")},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestEmbedder_EmbedDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("Preserves Order Across Batches", func(t *testing.T) {
		var calls int32
		ts := newEmbeddingServer(t, 3, &calls)
		e := NewEmbedder(EmbedderConfig{
			APIKey:      "test-key",
			Dimension:   3,
			BatchSize:   2,
			Concurrency: 3,
			Options:     []option.ClientOption{option.WithEndpoint(ts.URL)},
		})

		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
		vecs, err := e.EmbedDocuments(ctx, texts)
		require.NoError(t, err)
		require.Len(t, vecs, len(texts))
		for i, text := range texts {
			assert.Equal(t, float32(len(text)), vecs[i][0])
		}
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("Dimension Mismatch", func(t *testing.T) {
		var calls int32
		ts := newEmbeddingServer(t, 3, &calls)
		e := NewEmbedder(EmbedderConfig{
			APIKey:    "test-key",
			Dimension: 768,
			Options:   []option.ClientOption{option.WithEndpoint(ts.URL)},
		})

		_, err := e.EmbedDocuments(ctx, []string{"hola"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("Empty Input", func(t *testing.T) {
		e := NewEmbedder(EmbedderConfig{})
		vecs, err := e.EmbedDocuments(ctx, nil)
		assert.NoError(t, err)
		assert.Nil(t, vecs)
	})

	t.Run("Missing API Key", func(t *testing.T) {
		e := NewEmbedder(EmbedderConfig{})
		_, err := e.EmbedDocuments(ctx, []string{"hola"})
		assert.ErrorIs(t, err, ErrAPIKeyMissing)
	})
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	var calls int32
	ts := newEmbeddingServer(t, 3, &calls)
	e := NewEmbedder(EmbedderConfig{
		APIKey:    "test-key",
		Dimension: 3,
		Options:   []option.ClientOption{option.WithEndpoint(ts.URL)},
	})

	vec, err := e.EmbedQuery(context.Background(), "requisitos de titulacion")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	_, err = e.EmbedQuery(context.Background(), "otra consulta")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEmbedder_ConcurrentFirstUseBuildsOneClient(t *testing.T) {
	var calls int32
	ts := newEmbeddingServer(t, 3, &calls)
	e := NewEmbedder(EmbedderConfig{
		APIKey:    "test-key",
		Dimension: 3,
		Options:   []option.ClientOption{option.WithEndpoint(ts.URL)},
	})

	var built int32
	e.newClient = func(ctx context.Context, opts ...option.ClientOption) (*genai.Client, error) {
		atomic.AddInt32(&built, 1)
		return genai.NewClient(ctx, opts...)
	}

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := e.EmbedQuery(context.Background(), "reglamento de matricula")
				errs <- err
				return
			}
			_, err := e.EmbedDocuments(context.Background(), []string{"capitulo uno", "capitulo dos"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&built))
	assert.Equal(t, int32(callers), atomic.LoadInt32(&calls))
	require.NoError(t, e.Close())
}

func TestEmbedder_CloseBeforeUse(t *testing.T) {
	e := NewEmbedder(EmbedderConfig{APIKey: "test-key"})
	e.newClient = func(ctx context.Context, opts ...option.ClientOption) (*genai.Client, error) {
		t.Fatal("client built after close")
		return nil, nil
	}

	require.NoError(t, e.Close())
	_, err := e.EmbedQuery(context.Background(), "hola")
	assert.ErrorIs(t, err, ErrClientClosed)
}
