// Package catalog serves the read-only category and question lists.
package catalog

import (
	"context"

	"github.com/emandor/quiz_service/internal/apperr"
	"github.com/emandor/quiz_service/internal/model"
	"github.com/emandor/quiz_service/internal/store"
)

type Service struct {
	repo store.CatalogRepository
}

func NewService(repo store.CatalogRepository) *Service {
	return &Service{repo: repo}
}

// Categories lists every category with its question count.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	return s.repo.Categories(ctx)
}

// Questions returns the category's questions in random order, and the category name.
func (s *Service) Questions(ctx context.Context, categoryID int64) (string, []model.Question, error) {
	if categoryID <= 0 {
		return "", nil, apperr.Invalid("Invalid category ID")
	}
	qs, err := s.repo.Questions(ctx, categoryID)
	if err != nil {
		return "", nil, err
	}
	if len(qs) == 0 {
		return "", nil, apperr.ErrNotFound
	}
	return qs[0].CategoryName, qs, nil
}
