package vector

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ChunkClass is the collection that holds every indexed chunk and summary.
const ChunkClass = "UniversityChunk"

// SchemaClient defines the Weaviate schema operations needed at startup.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ChunkProperties lists the properties stored with each vector. Identifiers
// use the string type so filters match them exactly.
func ChunkProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "documentId", DataType: []string{"string"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "page", DataType: []string{"int"}},
		{Name: "kind", DataType: []string{"string"}},
		{Name: "title", DataType: []string{"text"}},
		{Name: "categoryId", DataType: []string{"string"}},
	}
}

// EnsureSchema creates the chunk class with cosine distance, or adds any
// property missing from an existing class.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ChunkClass)
	if err != nil {
		return fmt.Errorf("check class: %w", err)
	}

	properties := ChunkProperties()
	if !exists {
		return client.CreateClass(ctx, &models.Class{
			Class:             ChunkClass,
			Description:       "A chunk or summary of a university document",
			Vectorizer:        "none",
			VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
			Properties:        properties,
		})
	}

	class, err := client.GetClass(ctx, ChunkClass)
	if err != nil {
		return fmt.Errorf("get class: %w", err)
	}

	have := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		have[p.Name] = true
	}
	for _, p := range properties {
		if have[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, ChunkClass, p); err != nil {
			return fmt.Errorf("add property %s: %w", p.Name, err)
		}
	}
	return nil
}
