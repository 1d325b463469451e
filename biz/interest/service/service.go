// Package service implements the interest taxonomy.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/biz/interest/data/repository"
	"github.com/sohan284/social-media-go/biz/interest/structs"
	"github.com/sohan284/social-media-go/internal/slug"
)

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubCategoryNotFound = errors.New("subcategory not found")
)

type Service struct {
	categoryRepo repository.CategoryRepository
	subRepo      repository.SubCategoryRepository
	logger       *logger.Logger
}

func NewService(categoryRepo repository.CategoryRepository, subRepo repository.SubCategoryRepository, log *logger.Logger) *Service {
	return &Service{
		categoryRepo: categoryRepo,
		subRepo:      subRepo,
		logger:       log,
	}
}

func (s *Service) CreateCategory(ctx context.Context, req *structs.CreateCategoryRequest) (*structs.Category, error) {
	slug, err := s.uniqueSlug(ctx, req.Name, "", s.categoryRepo.SlugTaken)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	category := &structs.Category{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Slug:      slug,
		Icon:      req.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Category created", "category_id", category.ID, "slug", slug)
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req *structs.UpdateCategoryRequest) (*structs.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != category.Name {
		category.Name = *req.Name
		if category.Slug, err = s.uniqueSlug(ctx, category.Name, category.ID, s.categoryRepo.SlugTaken); err != nil {
			return nil, err
		}
	}
	if req.Icon != nil {
		category.Icon = *req.Icon
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*structs.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	if category.Subcategories, err = s.subRepo.ListByCategory(ctx, id); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns the whole taxonomy with subcategories attached.
func (s *Service) ListCategories(ctx context.Context) ([]*structs.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.subRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]*structs.SubCategory, len(categories))
	for _, sub := range subs {
		byCategory[sub.CategoryID] = append(byCategory[sub.CategoryID], sub)
	}
	for _, category := range categories {
		category.Subcategories = byCategory[category.ID]
	}
	return categories, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); errors.Is(err, sql.ErrNoRows) {
		return ErrCategoryNotFound
	} else if err != nil {
		return err
	}
	return s.categoryRepo.Delete(ctx, id)
}

func (s *Service) CreateSubCategory(ctx context.Context, req *structs.CreateSubCategoryRequest) (*structs.SubCategory, error) {
	if _, err := s.categoryRepo.FindByID(ctx, req.CategoryID); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	} else if err != nil {
		return nil, err
	}

	slug, err := s.uniqueSlug(ctx, req.Name, "", s.subRepo.SlugTaken)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sub := &structs.SubCategory{
		ID:         uuid.New().String(),
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Slug:       slug,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Subcategory created", "subcategory_id", sub.ID, "slug", slug)
	return sub, nil
}

func (s *Service) UpdateSubCategory(ctx context.Context, id string, req *structs.UpdateSubCategoryRequest) (*structs.SubCategory, error) {
	sub, err := s.subRepo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubCategoryNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != sub.Name {
		sub.Name = *req.Name
		if sub.Slug, err = s.uniqueSlug(ctx, sub.Name, sub.ID, s.subRepo.SlugTaken); err != nil {
			return nil, err
		}
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) DeleteSubCategory(ctx context.Context, id string) error {
	if _, err := s.subRepo.FindByID(ctx, id); errors.Is(err, sql.ErrNoRows) {
		return ErrSubCategoryNotFound
	} else if err != nil {
		return err
	}
	return s.subRepo.Delete(ctx, id)
}

func (s *Service) uniqueSlug(ctx context.Context, name, excludeID string, taken slug.TakenFunc) (string, error) {
	return slug.Unique(ctx, name, excludeID, taken)
}
