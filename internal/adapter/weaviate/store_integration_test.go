package weaviate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/weaviate"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/testutils"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

func TestWeaviateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	store := weaviate.NewStore(s.Weaviate)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	chunks := []vector.Chunk{
		{DocumentID: "doc-1", Title: "Reglamento", Content: "Requisitos para el grado", Kind: vector.KindContent, Page: 1, ChunkIndex: 0, Vector: []float32{1, 0, 0}},
		{DocumentID: "doc-1", Title: "Reglamento", Content: "Resumen del reglamento", Kind: vector.KindSummary, Page: 1, ChunkIndex: vector.SummaryChunkIndex, Vector: []float32{0.9, 0.1, 0}},
		{DocumentID: "doc-2", Title: "Calendario", Content: "Fechas de matricula", Kind: vector.KindContent, Page: 2, ChunkIndex: 0, Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, store.StoreChunks(ctx, chunks))

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// content search only sees content chunks
	res, err := store.Search(ctx, []float32{1, 0, 0}, vector.SearchParams{TopK: 10, Threshold: 0.5, Kind: vector.KindContent})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Requisitos para el grado", res[0].Content)
	assert.InDelta(t, 1.0, res[0].Score, 1e-3)

	// allowlist restricts documents
	res, err = store.Search(ctx, []float32{0, 1, 0}, vector.SearchParams{TopK: 10, Threshold: 0.0, Kind: vector.KindContent, DocumentIDs: []string{"doc-1"}})
	require.NoError(t, err)
	for _, m := range res {
		assert.Equal(t, "doc-1", m.DocumentID)
	}

	require.NoError(t, store.DeleteByDocument(ctx, "doc-1"))
	count, err = store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
