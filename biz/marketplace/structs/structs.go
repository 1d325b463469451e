// Package structs defines marketplace models.
package structs

import "time"

type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	CategoryID  string    `json:"category_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Image       string    `json:"image,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Plan is a subscription tier. PostLimit zero means unlimited.
type Plan struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	PostLimit  int       `json:"post_limit"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPending  SubscriptionStatus = "pending"
)

type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	PlanID    string             `json:"plan_id"`
	Status    SubscriptionStatus `json:"status"`
	StartedAt time.Time          `json:"started_at"`
	EndsAt    time.Time          `json:"ends_at"`
	CreatedAt time.Time          `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one row in the ledger. Reference is the provider's id and
// is what webhook callbacks key on.
type Payment struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	PlanID      string        `json:"plan_id,omitempty"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	Reference   string        `json:"reference"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// QuotaStatus reports post allowance for the current calendar month.
type QuotaStatus struct {
	PlanName  string `json:"plan_name"`
	PostLimit int    `json:"post_limit"`
	PostsUsed int    `json:"posts_used"`
	Unlimited bool   `json:"unlimited"`
}

type CreateProductRequest struct {
	CategoryID  string `json:"category_id"`
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" binding:"required,min=0"`
	Currency    string `json:"currency" binding:"omitempty,len=3"`
	Image       string `json:"image"`
}

type UpdateProductRequest struct {
	CategoryID  *string `json:"category_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Currency    *string `json:"currency"`
	Image       *string `json:"image"`
	Active      *bool   `json:"active"`
}

type CreatePlanRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	PriceCents int64  `json:"price_cents" binding:"min=0"`
	Currency   string `json:"currency" binding:"omitempty,len=3"`
	PostLimit  int    `json:"post_limit" binding:"min=0"`
}

type SubscribeRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// WebhookRequest is the inbound payment provider callback.
type WebhookRequest struct {
	Reference string `json:"reference" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=succeeded failed"`
}
