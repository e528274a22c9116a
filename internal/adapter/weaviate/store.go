package weaviate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, &schemaAdapter{client: s.client})
}

// StoreChunks writes chunks in one batch request. Any per-object failure
// fails the whole call; callers remove what was written.
func (s *Store) StoreChunks(ctx context.Context, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objs := make([]*models.Object, 0, len(chunks))
	for _, c := range chunks {
		objs = append(objs, &models.Object{
			Class: vector.ChunkClass,
			Properties: map[string]interface{}{
				"content":    c.Content,
				"documentId": c.DocumentID,
				"chunkIndex": c.ChunkIndex,
				"page":       c.Page,
				"kind":       string(c.Kind),
				"title":      c.Title,
				"categoryId": c.CategoryID,
			},
			Vector: c.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			var msgs []string
			for _, e := range r.Result.Errors.Error {
				msgs = append(msgs, e.Message)
			}
			return fmt.Errorf("batch insert: %s", strings.Join(msgs, "; "))
		}
	}
	return nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ChunkClass).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	return err
}

// Search runs a nearVector query. Scores are 1 minus the cosine distance, so
// the threshold becomes a maximum distance.
func (s *Store) Search(ctx context.Context, vec []float32, p vector.SearchParams) ([]vector.Match, error) {
	if p.TopK <= 0 {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec).
		WithDistance(float32(1 - p.Threshold))

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "page"},
		{Name: "kind"},
		{Name: "title"},
		{Name: "categoryId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(vector.ChunkClass).
		WithNearVector(nearVector).
		WithLimit(p.TopK).
		WithFields(fields...)
	if where := buildWhere(p); where != nil {
		query = query.WithWhere(where)
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var matches []vector.Match
	for _, props := range objectsOf(res.Data, "Get") {
		m := vector.Match{}
		m.Content, _ = props["content"].(string)
		m.DocumentID, _ = props["documentId"].(string)
		m.Title, _ = props["title"].(string)
		m.CategoryID, _ = props["categoryId"].(string)
		if kind, ok := props["kind"].(string); ok {
			m.Kind = vector.Kind(kind)
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			m.ChunkIndex = int(idx)
		}
		if page, ok := props["page"].(float64); ok {
			m.Page = int(page)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				m.Score = clamp(1 - d)
			}
		}
		if m.Score < p.Threshold {
			continue
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ChunkClass).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	objs := objectsOf(res.Data, "Aggregate")
	if len(objs) == 0 {
		return 0, nil
	}
	if meta, ok := objs[0]["meta"].(map[string]interface{}); ok {
		if count, ok := meta["count"].(float64); ok {
			return int(count), nil
		}
	}
	return 0, nil
}

func buildWhere(p vector.SearchParams) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	if p.Kind != "" {
		operands = append(operands, equal("kind", string(p.Kind)))
	}
	if p.CategoryID != "" {
		operands = append(operands, equal("categoryId", p.CategoryID))
	}
	if len(p.DocumentIDs) == 1 {
		operands = append(operands, equal("documentId", p.DocumentIDs[0]))
	} else if len(p.DocumentIDs) > 1 {
		var ids []*filters.WhereBuilder
		for _, id := range p.DocumentIDs {
			ids = append(ids, equal("documentId", id))
		}
		operands = append(operands, filters.Where().WithOperator(filters.Or).WithOperands(ids))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func equal(path, value string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{path}).
		WithOperator(filters.Equal).
		WithValueString(value)
}

func objectsOf(data map[string]models.JSONObject, op string) []map[string]interface{} {
	root, ok := data[op].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := root[vector.ChunkClass].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if props, ok := r.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
