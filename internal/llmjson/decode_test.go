package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queries struct {
	Queries []string `json:"queries"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"Plain", `{"queries":["a","b"]}`, []string{"a", "b"}},
		{"Fenced", "```json\n{\"queries\":[\"a\"]}\n```", []string{"a"}},
		{"Fenced Without Language", "```\n{\"queries\":[\"c\"]}\n```", []string{"c"}},
		{"Surrounded By Prose", "Claro, aqui tienes:\n{\"queries\":[\"x\",\"y\"]}\nEspero que ayude.", []string{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q queries
			require.NoError(t, Decode(tt.raw, &q))
			assert.Equal(t, tt.want, q.Queries)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	var q queries
	assert.ErrorIs(t, Decode("", &q), ErrNoJSON)
	assert.ErrorIs(t, Decode("sin json aqui", &q), ErrNoJSON)
	assert.Error(t, Decode("{roto", &q))
	assert.Error(t, Decode("prefijo {no es json} sufijo", &q))
}
