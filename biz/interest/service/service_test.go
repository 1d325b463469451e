package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/biz/interest/data/repository"
	"github.com/sohan284/social-media-go/biz/interest/service"
	"github.com/sohan284/social-media-go/biz/interest/structs"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cleanup, err := logger.New(&config.Logger{Level: 4, Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(cleanup)
	return logger.StdLogger()
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	categoryRepo, subRepo, err := repository.NewRepositories(db)
	if err != nil {
		t.Fatalf("init interest repositories: %v", err)
	}
	return service.NewService(categoryRepo, subRepo, testLogger(t))
}

func TestCategorySlugs(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, &structs.CreateCategoryRequest{Name: "Tech & Gadgets"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if first.Slug != "tech-gadgets" {
		t.Errorf("slug = %q, want tech-gadgets", first.Slug)
	}

	second, err := svc.CreateCategory(ctx, &structs.CreateCategoryRequest{Name: "Tech & Gadgets"})
	if err != nil {
		t.Fatalf("create duplicate name: %v", err)
	}
	if second.Slug != "tech-gadgets-2" {
		t.Errorf("second slug = %q, want tech-gadgets-2", second.Slug)
	}
}

func TestTaxonomyListing(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tech, err := svc.CreateCategory(ctx, &structs.CreateCategoryRequest{Name: "Technology"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	music, err := svc.CreateCategory(ctx, &structs.CreateCategoryRequest{Name: "Music"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	for _, name := range []string{"Programming", "Hardware"} {
		if _, err := svc.CreateSubCategory(ctx, &structs.CreateSubCategoryRequest{CategoryID: tech.ID, Name: name}); err != nil {
			t.Fatalf("create subcategory %q: %v", name, err)
		}
	}

	categories, err := svc.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(categories))
	}
	for _, c := range categories {
		switch c.ID {
		case tech.ID:
			if len(c.Subcategories) != 2 {
				t.Errorf("tech subcategories = %d, want 2", len(c.Subcategories))
			}
		case music.ID:
			if len(c.Subcategories) != 0 {
				t.Errorf("music subcategories = %d, want 0", len(c.Subcategories))
			}
		}
	}
}

func TestSubCategoryRequiresCategory(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateSubCategory(ctx, &structs.CreateSubCategoryRequest{CategoryID: "missing", Name: "Orphan"})
	if !errors.Is(err, service.ErrCategoryNotFound) {
		t.Fatalf("got %v, want ErrCategoryNotFound", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, &structs.CreateCategoryRequest{Name: "Sports"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	sub, err := svc.CreateSubCategory(ctx, &structs.CreateSubCategoryRequest{CategoryID: category.ID, Name: "Football"})
	if err != nil {
		t.Fatalf("create subcategory: %v", err)
	}

	name := "Outdoor Sports"
	updated, err := svc.UpdateCategory(ctx, category.ID, &structs.UpdateCategoryRequest{Name: &name})
	if err != nil {
		t.Fatalf("update category: %v", err)
	}
	if updated.Name != name || updated.Slug != "outdoor-sports" {
		t.Errorf("updated = %q/%q, want renamed with refreshed slug", updated.Name, updated.Slug)
	}

	if err := svc.DeleteSubCategory(ctx, sub.ID); err != nil {
		t.Fatalf("delete subcategory: %v", err)
	}
	if err := svc.DeleteSubCategory(ctx, sub.ID); !errors.Is(err, service.ErrSubCategoryNotFound) {
		t.Fatalf("delete again: got %v, want ErrSubCategoryNotFound", err)
	}

	if err := svc.DeleteCategory(ctx, category.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if _, err := svc.GetCategory(ctx, category.ID); !errors.Is(err, service.ErrCategoryNotFound) {
		t.Fatalf("get after delete: got %v, want ErrCategoryNotFound", err)
	}
}
