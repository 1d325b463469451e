// Package repository stores products, plans, subscriptions and payments.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/biz/marketplace/structs"
)

type ProductRepository interface {
	Create(ctx context.Context, product *structs.Product) error
	Update(ctx context.Context, product *structs.Product) error
	FindByID(ctx context.Context, id string) (*structs.Product, error)
	List(ctx context.Context, categoryID, query string, before time.Time, limit int) ([]*structs.Product, error)
	ListBySeller(ctx context.Context, sellerID string, before time.Time, limit int) ([]*structs.Product, error)
	Delete(ctx context.Context, id string) error
}

type PlanRepository interface {
	Create(ctx context.Context, plan *structs.Plan) error
	FindByID(ctx context.Context, id string) (*structs.Plan, error)
	ListActive(ctx context.Context) ([]*structs.Plan, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	Deactivate(ctx context.Context, id string) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *structs.Subscription) error
	SetStatus(ctx context.Context, id string, status structs.SubscriptionStatus) error
	FindActiveByUser(ctx context.Context, userID string, now time.Time) (*structs.Subscription, error)
	FindByID(ctx context.Context, id string) (*structs.Subscription, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *structs.Payment) error
	FindByReference(ctx context.Context, reference string) (*structs.Payment, error)
	SetStatus(ctx context.Context, id string, status structs.PaymentStatus) error
	ListByUser(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Payment, error)
}

type productRepository struct{ db *sql.DB }
type planRepository struct{ db *sql.DB }
type subscriptionRepository struct{ db *sql.DB }
type paymentRepository struct{ db *sql.DB }

func NewRepositories(db *sql.DB) (ProductRepository, PlanRepository, SubscriptionRepository, PaymentRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, nil, nil, nil, err
	}
	return &productRepository{db: db}, &planRepository{db: db},
		&subscriptionRepository{db: db}, &paymentRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			seller_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'usd',
			image TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			price_cents INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'usd',
			post_limit INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			plan_id TEXT NOT NULL REFERENCES plans(id),
			status TEXT NOT NULL DEFAULT 'pending',
			started_at TEXT NOT NULL,
			ends_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			plan_id TEXT NOT NULL DEFAULT '',
			amount_cents INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'usd',
			reference TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id, status);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *productRepository) Create(ctx context.Context, product *structs.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, category_id, title, description,
			price_cents, currency, image, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		product.ID,
		product.SellerID,
		product.CategoryID,
		product.Title,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.Image,
		product.Active,
		product.CreatedAt.UTC().Format(time.RFC3339Nano),
		product.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *productRepository) Update(ctx context.Context, product *structs.Product) error {
	product.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET category_id = ?, title = ?, description = ?, price_cents = ?,
			currency = ?, image = ?, active = ?, updated_at = ?
		WHERE id = ?
	`,
		product.CategoryID,
		product.Title,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.Image,
		product.Active,
		product.UpdatedAt.UTC().Format(time.RFC3339Nano),
		product.ID,
	)
	return err
}

const productColumns = `id, seller_id, category_id, title, description,
	price_cents, currency, image, active, created_at, updated_at`

func (r *productRepository) FindByID(ctx context.Context, id string) (*structs.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

func (r *productRepository) List(ctx context.Context, categoryID, query string, before time.Time, limit int) ([]*structs.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE active = 1 AND created_at < ?`
	args := []any{before.UTC().Format(time.RFC3339Nano)}

	if categoryID != "" {
		q += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	if query != "" {
		q += ` AND (title LIKE ? OR description LIKE ?)`
		like := "%" + query + "%"
		args = append(args, like, like)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *productRepository) ListBySeller(ctx context.Context, sellerID string, before time.Time, limit int) ([]*structs.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE seller_id = ? AND created_at < ?
		ORDER BY created_at DESC LIMIT ?
	`, sellerID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return err
}

func (r *planRepository) Create(ctx context.Context, plan *structs.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, slug, price_cents, currency, post_limit, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		plan.ID,
		plan.Name,
		plan.Slug,
		plan.PriceCents,
		plan.Currency,
		plan.PostLimit,
		plan.Active,
		plan.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *planRepository) FindByID(ctx context.Context, id string) (*structs.Plan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, price_cents, currency, post_limit, active, created_at
		FROM plans WHERE id = ?
	`, id)
	return scanPlan(row)
}

func (r *planRepository) ListActive(ctx context.Context) ([]*structs.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, price_cents, currency, post_limit, active, created_at
		FROM plans WHERE active = 1 ORDER BY price_cents
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*structs.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *planRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM plans WHERE slug = ? AND id != ?`, slug, excludeID).Scan(&count)
	return count > 0, err
}

func (r *planRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE plans SET active = 0 WHERE id = ?`, id)
	return err
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *structs.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, started_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		string(sub.Status),
		sub.StartedAt.UTC().Format(time.RFC3339Nano),
		sub.EndsAt.UTC().Format(time.RFC3339Nano),
		sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *subscriptionRepository) SetStatus(ctx context.Context, id string, status structs.SubscriptionStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ? WHERE id = ?`, string(status), id)
	return err
}

func (r *subscriptionRepository) FindActiveByUser(ctx context.Context, userID string, now time.Time) (*structs.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, status, started_at, ends_at, created_at
		FROM subscriptions
		WHERE user_id = ? AND status = 'active' AND ends_at > ?
		ORDER BY ends_at DESC LIMIT 1
	`, userID, now.UTC().Format(time.RFC3339Nano))
	return scanSubscription(row)
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id string) (*structs.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, status, started_at, ends_at, created_at
		FROM subscriptions WHERE id = ?
	`, id)
	return scanSubscription(row)
}

func (r *paymentRepository) Create(ctx context.Context, payment *structs.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, plan_id, amount_cents, currency,
			reference, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		payment.ID,
		payment.UserID,
		payment.PlanID,
		payment.AmountCents,
		payment.Currency,
		payment.Reference,
		string(payment.Status),
		payment.CreatedAt.UTC().Format(time.RFC3339Nano),
		payment.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *paymentRepository) FindByReference(ctx context.Context, reference string) (*structs.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, amount_cents, currency, reference, status, created_at, updated_at
		FROM payments WHERE reference = ?
	`, reference)
	return scanPayment(row)
}

func (r *paymentRepository) SetStatus(ctx context.Context, id string, status structs.PaymentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, plan_id, amount_cents, currency, reference, status, created_at, updated_at
		FROM payments WHERE user_id = ? AND created_at < ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*structs.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanProduct(scanner interface{ Scan(dest ...any) error }) (*structs.Product, error) {
	var createdAt, updatedAt string

	product := &structs.Product{}
	if err := scanner.Scan(&product.ID, &product.SellerID, &product.CategoryID,
		&product.Title, &product.Description, &product.PriceCents, &product.Currency,
		&product.Image, &product.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if product.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if product.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return product, nil
}

func scanPlan(scanner interface{ Scan(dest ...any) error }) (*structs.Plan, error) {
	var createdAt string

	plan := &structs.Plan{}
	if err := scanner.Scan(&plan.ID, &plan.Name, &plan.Slug, &plan.PriceCents,
		&plan.Currency, &plan.PostLimit, &plan.Active, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if plan.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return plan, nil
}

func scanSubscription(scanner interface{ Scan(dest ...any) error }) (*structs.Subscription, error) {
	var status, startedAt, endsAt, createdAt string

	sub := &structs.Subscription{}
	if err := scanner.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &status,
		&startedAt, &endsAt, &createdAt); err != nil {
		return nil, err
	}

	sub.Status = structs.SubscriptionStatus(status)
	var err error
	if sub.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, err
	}
	if sub.EndsAt, err = time.Parse(time.RFC3339Nano, endsAt); err != nil {
		return nil, err
	}
	if sub.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return sub, nil
}

func scanPayment(scanner interface{ Scan(dest ...any) error }) (*structs.Payment, error) {
	var status, createdAt, updatedAt string

	payment := &structs.Payment{}
	if err := scanner.Scan(&payment.ID, &payment.UserID, &payment.PlanID,
		&payment.AmountCents, &payment.Currency, &payment.Reference, &status,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	payment.Status = structs.PaymentStatus(status)
	var err error
	if payment.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if payment.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return payment, nil
}

func collectProducts(rows *sql.Rows) ([]*structs.Product, error) {
	var products []*structs.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}
