package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestQueryExpander_Expand(t *testing.T) {
	ctx := context.Background()
	q := "Cuales son los requisitos de titulacion?"

	t.Run("Disabled Makes No Call", func(t *testing.T) {
		gen := new(MockGenerator)
		out := NewQueryExpander(gen).Expand(ctx, q, false)
		assert.Equal(t, []string{q}, out)
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Adds Variants", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, withSystem(expansionSystem)).
			Return("```json\n{\"queries\": [\"Que necesito para titularme?\", \"Requisitos del titulo profesional\"]}\n```", nil)

		out := NewQueryExpander(gen).Expand(ctx, q, true)
		assert.Equal(t, []string{q, "Que necesito para titularme?", "Requisitos del titulo profesional"}, out)
	})

	t.Run("Drops Copies Of The Original", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"queries": ["CUALES SON LOS REQUISITOS DE TITULACION?", "  ", "Otra forma"]}`, nil)

		out := NewQueryExpander(gen).Expand(ctx, q, true)
		assert.Equal(t, []string{q, "Otra forma"}, out)
	})

	t.Run("At Most Three", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"queries": ["a", "b", "c", "d"]}`, nil)

		out := NewQueryExpander(gen).Expand(ctx, q, true)
		assert.Equal(t, []string{q, "a", "b"}, out)
	})

	t.Run("Generation Error", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("circuit open"))

		assert.Equal(t, []string{q}, NewQueryExpander(gen).Expand(ctx, q, true))
	})

	t.Run("Unparseable Output", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Claro, aqui van dos variantes", nil)

		assert.Equal(t, []string{q}, NewQueryExpander(gen).Expand(ctx, q, true))
	})
}
