package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

type MockSchemaClient struct {
	CreatedClass    *models.Class
	ExistingClass   *models.Class
	AddedProperties []*models.Property
	ExistsErr       error
}

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.ExistingClass != nil, nil
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	m.CreatedClass = class
	return nil
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return m.ExistingClass, nil
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	m.AddedProperties = append(m.AddedProperties, property)
	return nil
}

func TestEnsureSchema_CreatesClass(t *testing.T) {
	client := &MockSchemaClient{}
	require.NoError(t, EnsureSchema(context.Background(), client))
	require.NotNil(t, client.CreatedClass)

	assert.Equal(t, ChunkClass, client.CreatedClass.Class)
	assert.Equal(t, "none", client.CreatedClass.Vectorizer)
	assert.Equal(t, map[string]interface{}{"distance": "cosine"}, client.CreatedClass.VectorIndexConfig)

	types := map[string]string{}
	for _, p := range client.CreatedClass.Properties {
		types[p.Name] = p.DataType[0]
	}
	assert.Equal(t, "string", types["documentId"])
	assert.Equal(t, "string", types["categoryId"])
	assert.Equal(t, "string", types["kind"])
	assert.Equal(t, "int", types["page"])
	assert.Equal(t, "text", types["content"])
}

func TestEnsureSchema_AddsMissingProperties(t *testing.T) {
	client := &MockSchemaClient{
		ExistingClass: &models.Class{
			Class: ChunkClass,
			Properties: []*models.Property{
				{Name: "content", DataType: []string{"text"}},
				{Name: "documentId", DataType: []string{"string"}},
				{Name: "chunkIndex", DataType: []string{"int"}},
			},
		},
	}

	require.NoError(t, EnsureSchema(context.Background(), client))
	assert.Nil(t, client.CreatedClass, "existing class must not be recreated")

	var added []string
	for _, p := range client.AddedProperties {
		added = append(added, p.Name)
	}
	assert.ElementsMatch(t, []string{"page", "kind", "title", "categoryId"}, added)
}

func TestEnsureSchema_ExistsError(t *testing.T) {
	client := &MockSchemaClient{ExistsErr: errors.New("connection refused")}
	err := EnsureSchema(context.Background(), client)
	assert.ErrorContains(t, err, "connection refused")
}
