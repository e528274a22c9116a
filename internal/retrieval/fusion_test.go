package retrieval_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/retrieval"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

type MockExpander struct{ mock.Mock }

func (m *MockExpander) Expand(ctx context.Context, question string, enabled bool) []string {
	return m.Called(ctx, question, enabled).Get(0).([]string)
}

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Retrieve(ctx context.Context, query string, p retrieval.Params) ([]vector.Match, error) {
	args := m.Called(ctx, query, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Match), args.Error(1)
}

func TestFuse(t *testing.T) {
	t.Run("Keeps Higher Score For Same Passage", func(t *testing.T) {
		v1 := []vector.Match{hit("a", 1, "El reglamento establece", 0.61)}
		v2 := []vector.Match{hit("a", 1, "El reglamento establece", 0.77)}

		out := retrieval.Fuse([][]vector.Match{v1, v2}, 5)
		require.Len(t, out, 1)
		assert.Equal(t, 0.77, out[0].Score)
	})

	t.Run("Prefix Beyond Sixty Characters Is Ignored", func(t *testing.T) {
		prefix := strings.Repeat("x", 60)
		out := retrieval.Fuse([][]vector.Match{
			{hit("a", 1, prefix+" final uno", 0.5)},
			{hit("a", 1, prefix+" final dos", 0.6)},
		}, 5)
		require.Len(t, out, 1)
		assert.Equal(t, prefix+" final dos", out[0].Content)
	})

	t.Run("Different Page Is Different Passage", func(t *testing.T) {
		out := retrieval.Fuse([][]vector.Match{
			{hit("a", 1, "mismo texto", 0.5)},
			{hit("a", 2, "mismo texto", 0.6)},
		}, 5)
		assert.Len(t, out, 2)
	})

	t.Run("Sorts And Truncates", func(t *testing.T) {
		out := retrieval.Fuse([][]vector.Match{
			{hit("a", 1, "uno", 0.3), hit("b", 1, "dos", 0.9)},
			{hit("c", 1, "tres", 0.6)},
		}, 2)
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[0].DocumentID)
		assert.Equal(t, "c", out[1].DocumentID)
	})
}

func TestRender(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		text, sources := retrieval.Render(nil)
		assert.Equal(t, "", text)
		assert.NotNil(t, sources)
		assert.Empty(t, sources)
	})

	t.Run("Blocks And Unique Sources", func(t *testing.T) {
		long := strings.Repeat("a", 200)
		hits := []vector.Match{
			hit("d1", 3, long, 0.87654),
			hit("d1", 3, "otro fragmento de la misma pagina", 0.8),
			hit("d2", 1, "corto", 0.5),
		}

		text, sources := retrieval.Render(hits)

		blocks := strings.Split(text, "\n\n---\n\n")
		require.Len(t, blocks, 3)
		assert.Equal(t, "[Documento: Doc d2, Pagina: 1]\ncorto", blocks[2])

		require.Len(t, sources, 2)
		assert.Equal(t, "d1", sources[0].DocumentID)
		assert.Equal(t, 0.877, sources[0].Score)
		assert.Equal(t, strings.Repeat("a", 150)+"...", sources[0].Preview)
		assert.Equal(t, "corto", sources[1].Preview)
	})
}

func TestAssembler_Assemble(t *testing.T) {
	p := defaultParams()
	p.ExpandQuery = true

	t.Run("Fuses Variants", func(t *testing.T) {
		exp, s := new(MockExpander), new(MockSearcher)
		exp.On("Expand", mock.Anything, "como me matriculo", true).Return([]string{"como me matriculo", "proceso de matricula"})
		s.On("Retrieve", mock.Anything, "como me matriculo", p).Return([]vector.Match{hit("a", 1, "Paso 1", 0.6)}, nil)
		s.On("Retrieve", mock.Anything, "proceso de matricula", p).Return([]vector.Match{hit("a", 1, "Paso 1", 0.8), hit("b", 2, "Pago", 0.4)}, nil)

		var buf bytes.Buffer
		got, err := retrieval.NewAssembler(exp, s, retrieval.NewQueryLogger(&buf)).Assemble(context.Background(), "como me matriculo", p)
		require.NoError(t, err)

		require.Len(t, got.Hits, 2)
		assert.Equal(t, 0.8, got.Hits[0].Score)
		assert.Len(t, got.Sources, 2)
		assert.False(t, got.Empty())

		var entry retrieval.QueryLogEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, 2, entry.Variants)
		assert.Equal(t, 2, entry.NumResults)
	})

	t.Run("Nothing Found", func(t *testing.T) {
		exp, s := new(MockExpander), new(MockSearcher)
		exp.On("Expand", mock.Anything, "q", true).Return([]string{"q", "q2"})
		s.On("Retrieve", mock.Anything, mock.Anything, p).Return([]vector.Match{}, nil)

		got, err := retrieval.NewAssembler(exp, s, nil).Assemble(context.Background(), "q", p)
		require.NoError(t, err)
		assert.True(t, got.Empty())
		assert.Equal(t, []retrieval.Source{}, got.Sources)
	})

	t.Run("Skips Failed Variant", func(t *testing.T) {
		exp, s := new(MockExpander), new(MockSearcher)
		exp.On("Expand", mock.Anything, "q", true).Return([]string{"q", "q2"})
		s.On("Retrieve", mock.Anything, "q", p).Return(nil, errors.New("timeout"))
		s.On("Retrieve", mock.Anything, "q2", p).Return([]vector.Match{hit("a", 1, "x", 0.5)}, nil)

		got, err := retrieval.NewAssembler(exp, s, nil).Assemble(context.Background(), "q", p)
		require.NoError(t, err)
		assert.Len(t, got.Hits, 1)
	})

	t.Run("All Variants Fail", func(t *testing.T) {
		exp, s := new(MockExpander), new(MockSearcher)
		exp.On("Expand", mock.Anything, "q", true).Return([]string{"q"})
		s.On("Retrieve", mock.Anything, "q", p).Return(nil, errors.New("index down"))

		_, err := retrieval.NewAssembler(exp, s, nil).Assemble(context.Background(), "q", p)
		assert.ErrorIs(t, err, retrieval.ErrAllQueriesFailed)
	})
}
