// Package service implements the marketplace: products, plans,
// subscriptions and the payment ledger.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/biz/marketplace/data/repository"
	"github.com/sohan284/social-media-go/biz/marketplace/structs"
	"github.com/sohan284/social-media-go/internal/event"
	"github.com/sohan284/social-media-go/internal/slug"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotSeller            = errors.New("not the product seller")
	ErrAlreadySubscribed    = errors.New("subscription already active")
)

// FreeMonthlyPostLimit is the allowance without an active subscription.
const FreeMonthlyPostLimit = 2

const freePlanName = "free"

// PostCounter reports how many posts a user created since a point in
// time. The post module provides it.
type PostCounter interface {
	CountByAuthorSince(ctx context.Context, authorID string, since time.Time) (int, error)
}

type Service struct {
	productRepo repository.ProductRepository
	planRepo    repository.PlanRepository
	subRepo     repository.SubscriptionRepository
	paymentRepo repository.PaymentRepository
	posts       PostCounter
	bus         *event.Bus
	logger      *logger.Logger
}

func NewService(
	productRepo repository.ProductRepository,
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	paymentRepo repository.PaymentRepository,
	posts PostCounter,
	bus *event.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		productRepo: productRepo,
		planRepo:    planRepo,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		posts:       posts,
		bus:         bus,
		logger:      log,
	}
}

func (s *Service) CreateProduct(ctx context.Context, sellerID string, req *structs.CreateProductRequest) (*structs.Product, error) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	now := time.Now()
	product := &structs.Product{
		ID:          uuid.New().String(),
		SellerID:    sellerID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    currency,
		Image:       req.Image,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Product created", "product_id", product.ID, "seller_id", sellerID)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID, callerID string, req *structs.UpdateProductRequest) (*structs.Product, error) {
	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != callerID {
		return nil, ErrNotSeller
	}

	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Title != nil {
		product.Title = *req.Title
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.Currency != nil {
		product.Currency = *req.Currency
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*structs.Product, error) {
	return s.findProduct(ctx, productID)
}

func (s *Service) ListProducts(ctx context.Context, categoryID, query string, before time.Time, limit int) ([]*structs.Product, error) {
	return s.productRepo.List(ctx, categoryID, query, before, limit)
}

func (s *Service) ListSellerProducts(ctx context.Context, sellerID string, before time.Time, limit int) ([]*structs.Product, error) {
	return s.productRepo.ListBySeller(ctx, sellerID, before, limit)
}

func (s *Service) DeleteProduct(ctx context.Context, productID, callerID string, isAdmin bool) error {
	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != callerID && !isAdmin {
		return ErrNotSeller
	}
	return s.productRepo.Delete(ctx, productID)
}

func (s *Service) CreatePlan(ctx context.Context, req *structs.CreatePlanRequest) (*structs.Plan, error) {
	planSlug, err := slug.Unique(ctx, req.Name, "", s.planRepo.SlugTaken)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	plan := &structs.Plan{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Slug:       planSlug,
		PriceCents: req.PriceCents,
		Currency:   currency,
		PostLimit:  req.PostLimit,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]*structs.Plan, error) {
	return s.planRepo.ListActive(ctx)
}

func (s *Service) DeactivatePlan(ctx context.Context, planID string) error {
	if _, err := s.findPlan(ctx, planID); err != nil {
		return err
	}
	return s.planRepo.Deactivate(ctx, planID)
}

// Subscribe opens a pending subscription and the matching ledger entry.
// The returned payment reference is what the provider checkout carries
// and what the webhook later resolves.
func (s *Service) Subscribe(ctx context.Context, userID string, req *structs.SubscribeRequest) (*structs.Payment, error) {
	plan, err := s.findPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := s.subRepo.FindActiveByUser(ctx, userID, now); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	sub := &structs.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    structs.SubscriptionPending,
		StartedAt: now,
		EndsAt:    now.AddDate(0, 1, 0),
		CreatedAt: now,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	payment := &structs.Payment{
		ID:          uuid.New().String(),
		UserID:      userID,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		Reference:   sub.ID,
		Status:      structs.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Subscription checkout opened",
		"user_id", userID, "plan_id", plan.ID, "reference", payment.Reference)
	return payment, nil
}

// HandleWebhook resolves a pending payment. Success activates the
// subscription the reference points at. Replays are idempotent.
func (s *Service) HandleWebhook(ctx context.Context, req *structs.WebhookRequest) error {
	payment, err := s.paymentRepo.FindByReference(ctx, req.Reference)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPaymentNotFound
	}
	if err != nil {
		return err
	}
	if payment.Status != structs.PaymentPending {
		return nil
	}

	if req.Status == "succeeded" {
		if err := s.paymentRepo.SetStatus(ctx, payment.ID, structs.PaymentSucceeded); err != nil {
			return err
		}
		if err := s.subRepo.SetStatus(ctx, payment.Reference, structs.SubscriptionActive); err != nil {
			return err
		}
		s.publish(ctx, &event.Event{
			Type:      event.TypePaymentSucceeded,
			SubjectID: payment.UserID,
			ObjectID:  payment.ID,
		})
		s.logger.Info(ctx, "Payment succeeded", "payment_id", payment.ID, "user_id", payment.UserID)
		return nil
	}

	if err := s.paymentRepo.SetStatus(ctx, payment.ID, structs.PaymentFailed); err != nil {
		return err
	}
	if err := s.subRepo.SetStatus(ctx, payment.Reference, structs.SubscriptionCanceled); err != nil {
		return err
	}
	s.publish(ctx, &event.Event{
		Type:      event.TypePaymentFailed,
		SubjectID: payment.UserID,
		ObjectID:  payment.ID,
	})
	return nil
}

func (s *Service) CancelSubscription(ctx context.Context, subscriptionID, userID string) error {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return ErrSubscriptionNotFound
	}
	return s.subRepo.SetStatus(ctx, subscriptionID, structs.SubscriptionCanceled)
}

func (s *Service) ListPayments(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Payment, error) {
	return s.paymentRepo.ListByUser(ctx, userID, before, limit)
}

// QuotaStatus reports the caller's allowance for the current calendar
// month. The count windows on the month boundary, so allowances reset
// when the month rolls over.
func (s *Service) QuotaStatus(ctx context.Context, userID string) (*structs.QuotaStatus, error) {
	limit, planName, err := s.currentLimit(ctx, userID)
	if err != nil {
		return nil, err
	}

	used, err := s.posts.CountByAuthorSince(ctx, userID, monthStart(time.Now()))
	if err != nil {
		return nil, err
	}

	return &structs.QuotaStatus{
		PlanName:  planName,
		PostLimit: limit,
		PostsUsed: used,
		Unlimited: limit == 0,
	}, nil
}

// CanCreatePost implements the post module's quota gate.
func (s *Service) CanCreatePost(ctx context.Context, userID string) (bool, error) {
	status, err := s.QuotaStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	if status.Unlimited {
		return true, nil
	}
	return status.PostsUsed < status.PostLimit, nil
}

func (s *Service) currentLimit(ctx context.Context, userID string) (int, string, error) {
	sub, err := s.subRepo.FindActiveByUser(ctx, userID, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return FreeMonthlyPostLimit, freePlanName, nil
	}
	if err != nil {
		return 0, "", err
	}

	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if errors.Is(err, sql.ErrNoRows) {
		return FreeMonthlyPostLimit, freePlanName, nil
	}
	if err != nil {
		return 0, "", err
	}
	return plan.PostLimit, plan.Name, nil
}

func (s *Service) findProduct(ctx context.Context, productID string) (*structs.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *Service) findPlan(ctx context.Context, planID string) (*structs.Plan, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	return plan, err
}

func (s *Service) publish(ctx context.Context, evt *event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn(ctx, "Failed to publish event", "type", evt.Type, "error", err)
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
