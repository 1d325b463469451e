// Package repository stores interest categories and subcategories.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/biz/interest/structs"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *structs.Category) error
	Update(ctx context.Context, category *structs.Category) error
	FindByID(ctx context.Context, id string) (*structs.Category, error)
	FindBySlug(ctx context.Context, slug string) (*structs.Category, error)
	List(ctx context.Context) ([]*structs.Category, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type SubCategoryRepository interface {
	Create(ctx context.Context, sub *structs.SubCategory) error
	Update(ctx context.Context, sub *structs.SubCategory) error
	FindByID(ctx context.Context, id string) (*structs.SubCategory, error)
	ListByCategory(ctx context.Context, categoryID string) ([]*structs.SubCategory, error)
	List(ctx context.Context) ([]*structs.SubCategory, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type categoryRepository struct {
	db *sql.DB
}

type subCategoryRepository struct {
	db *sql.DB
}

func NewRepositories(db *sql.DB) (CategoryRepository, SubCategoryRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, nil, err
	}
	return &categoryRepository{db: db}, &subCategoryRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			icon TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subcategories (
			id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_subcategories_category ON subcategories (category_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *categoryRepository) Create(ctx context.Context, category *structs.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		category.ID,
		category.Name,
		category.Slug,
		category.Icon,
		category.CreatedAt.UTC().Format(time.RFC3339Nano),
		category.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *categoryRepository) Update(ctx context.Context, category *structs.Category) error {
	category.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, slug = ?, icon = ?, updated_at = ? WHERE id = ?
	`,
		category.Name,
		category.Slug,
		category.Icon,
		category.UpdatedAt.UTC().Format(time.RFC3339Nano),
		category.ID,
	)
	return err
}

func (r *categoryRepository) FindByID(ctx context.Context, id string) (*structs.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, icon, created_at, updated_at FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*structs.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, icon, created_at, updated_at FROM categories WHERE slug = ?`, slug)
	return scanCategory(row)
}

func (r *categoryRepository) List(ctx context.Context) ([]*structs.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug, icon, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*structs.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *categoryRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM categories WHERE slug = ? AND id != ?`, slug, excludeID,
	).Scan(&count)
	return count > 0, err
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}

func (r *subCategoryRepository) Create(ctx context.Context, sub *structs.SubCategory) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subcategories (id, category_id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		sub.ID,
		sub.CategoryID,
		sub.Name,
		sub.Slug,
		sub.CreatedAt.UTC().Format(time.RFC3339Nano),
		sub.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *subCategoryRepository) Update(ctx context.Context, sub *structs.SubCategory) error {
	sub.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE subcategories SET name = ?, slug = ?, updated_at = ? WHERE id = ?
	`,
		sub.Name,
		sub.Slug,
		sub.UpdatedAt.UTC().Format(time.RFC3339Nano),
		sub.ID,
	)
	return err
}

func (r *subCategoryRepository) FindByID(ctx context.Context, id string) (*structs.SubCategory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, category_id, name, slug, created_at, updated_at FROM subcategories WHERE id = ?`, id)
	return scanSubCategory(row)
}

func (r *subCategoryRepository) ListByCategory(ctx context.Context, categoryID string) ([]*structs.SubCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, name, slug, created_at, updated_at
		FROM subcategories WHERE category_id = ? ORDER BY name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubCategories(rows)
}

func (r *subCategoryRepository) List(ctx context.Context) ([]*structs.SubCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, name, slug, created_at, updated_at FROM subcategories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubCategories(rows)
}

func (r *subCategoryRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM subcategories WHERE slug = ? AND id != ?`, slug, excludeID,
	).Scan(&count)
	return count > 0, err
}

func (r *subCategoryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subcategories WHERE id = ?`, id)
	return err
}

func scanCategory(scanner interface{ Scan(dest ...any) error }) (*structs.Category, error) {
	var createdAt, updatedAt string

	category := &structs.Category{}
	if err := scanner.Scan(&category.ID, &category.Name, &category.Slug, &category.Icon,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if category.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if category.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return category, nil
}

func scanSubCategory(scanner interface{ Scan(dest ...any) error }) (*structs.SubCategory, error) {
	var createdAt, updatedAt string

	sub := &structs.SubCategory{}
	if err := scanner.Scan(&sub.ID, &sub.CategoryID, &sub.Name, &sub.Slug,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if sub.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if sub.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return sub, nil
}

func collectSubCategories(rows *sql.Rows) ([]*structs.SubCategory, error) {
	var subs []*structs.SubCategory
	for rows.Next() {
		sub, err := scanSubCategory(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
