package category

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidName = errors.New("category name is required")
	nonSlug        = regexp.MustCompile(`[^a-z0-9]+`)
)

type Category struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	IsActive      bool   `json:"is_active"`
	DocumentCount int    `json:"document_count"`
}

type Repository interface {
	List(ctx context.Context) ([]Category, error)
	ListActive(ctx context.Context) ([]Category, error)
	Save(ctx context.Context, c *Category) error
	RefreshDocumentCount(ctx context.Context, id string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListActive(ctx context.Context) ([]Category, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) Create(ctx context.Context, c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ErrInvalidName
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	c.IsActive = true
	return s.repo.Save(ctx, c)
}

// RefreshDocumentCount recomputes the number of completed documents in a category.
func (s *Service) RefreshDocumentCount(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.repo.RefreshDocumentCount(ctx, id)
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
// Accented letters are folded to their ASCII base first.
func Slugify(name string) string {
	folded := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	).Replace(strings.ToLower(name))
	return strings.Trim(nonSlug.ReplaceAllString(folded, "-"), "-")
}
