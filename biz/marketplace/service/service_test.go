package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	accountrepo "github.com/sohan284/social-media-go/core/account/data/repository"
	accountstructs "github.com/sohan284/social-media-go/core/account/structs"

	"github.com/sohan284/social-media-go/biz/marketplace/data/repository"
	"github.com/sohan284/social-media-go/biz/marketplace/service"
	"github.com/sohan284/social-media-go/biz/marketplace/structs"
)

// fakeCounter stands in for the post module's author counter.
type fakeCounter struct {
	counts map[string]int
}

func (f *fakeCounter) CountByAuthorSince(ctx context.Context, authorID string, since time.Time) (int, error) {
	return f.counts[authorID], nil
}

type fixture struct {
	svc      *service.Service
	counter  *fakeCounter
	userRepo accountrepo.UserRepository
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cleanup, err := logger.New(&config.Logger{Level: 4, Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(cleanup)
	return logger.StdLogger()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo, _, _, err := accountrepo.NewRepositories(db)
	if err != nil {
		t.Fatalf("init account repositories: %v", err)
	}
	productRepo, planRepo, subRepo, paymentRepo, err := repository.NewRepositories(db)
	if err != nil {
		t.Fatalf("init marketplace repositories: %v", err)
	}

	counter := &fakeCounter{counts: map[string]int{}}
	svc := service.NewService(productRepo, planRepo, subRepo, paymentRepo, counter, nil, testLogger(t))
	return &fixture{svc: svc, counter: counter, userRepo: userRepo}
}

func (f *fixture) user(t *testing.T, username string) string {
	t.Helper()
	now := time.Now()
	u := &accountstructs.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     username + "@example.com",
		Role:      accountstructs.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.userRepo.Create(context.Background(), nil, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (f *fixture) plan(t *testing.T, name string, postLimit int) *structs.Plan {
	t.Helper()
	plan, err := f.svc.CreatePlan(context.Background(), &structs.CreatePlanRequest{
		Name:       name,
		PriceCents: 999,
		PostLimit:  postLimit,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return plan
}

// subscribe runs the full happy path: Subscribe then a succeeded webhook.
func (f *fixture) subscribe(t *testing.T, userID, planID string) *structs.Payment {
	t.Helper()
	ctx := context.Background()
	payment, err := f.svc.Subscribe(ctx, userID, &structs.SubscribeRequest{PlanID: planID})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := f.svc.HandleWebhook(ctx, &structs.WebhookRequest{Reference: payment.Reference, Status: "succeeded"}); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	return payment
}

func TestProductOwnership(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, "seller")
	other := f.user(t, "other")
	ctx := context.Background()

	product, err := f.svc.CreateProduct(ctx, seller, &structs.CreateProductRequest{
		Title:      "Mechanical keyboard",
		PriceCents: 12900,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.Currency != "usd" {
		t.Errorf("currency = %q, want default usd", product.Currency)
	}

	title := "Ergonomic keyboard"
	if _, err := f.svc.UpdateProduct(ctx, product.ID, other, &structs.UpdateProductRequest{Title: &title}); !errors.Is(err, service.ErrNotSeller) {
		t.Fatalf("update by stranger: got %v, want ErrNotSeller", err)
	}
	updated, err := f.svc.UpdateProduct(ctx, product.ID, seller, &structs.UpdateProductRequest{Title: &title})
	if err != nil {
		t.Fatalf("update by seller: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}

	if err := f.svc.DeleteProduct(ctx, product.ID, other, false); !errors.Is(err, service.ErrNotSeller) {
		t.Fatalf("delete by stranger: got %v, want ErrNotSeller", err)
	}
	// Admins may remove any listing.
	if err := f.svc.DeleteProduct(ctx, product.ID, other, true); err != nil {
		t.Fatalf("delete by admin: %v", err)
	}
	if _, err := f.svc.GetProduct(ctx, product.ID); !errors.Is(err, service.ErrProductNotFound) {
		t.Fatalf("get after delete: got %v, want ErrProductNotFound", err)
	}
}

func TestPlanSlugUniqueness(t *testing.T) {
	f := newFixture(t)

	first := f.plan(t, "Pro Plan", 50)
	second := f.plan(t, "Pro Plan", 100)
	if first.Slug != "pro-plan" {
		t.Errorf("slug = %q, want pro-plan", first.Slug)
	}
	if second.Slug != "pro-plan-2" {
		t.Errorf("second slug = %q, want pro-plan-2", second.Slug)
	}
}

func TestFreeTierQuota(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "casual")
	ctx := context.Background()

	status, err := f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if status.PlanName != "free" || status.PostLimit != service.FreeMonthlyPostLimit {
		t.Fatalf("status = %+v, want free plan with limit %d", status, service.FreeMonthlyPostLimit)
	}

	for used, want := range map[int]bool{0: true, 1: true, 2: false, 5: false} {
		f.counter.counts[user] = used
		ok, err := f.svc.CanCreatePost(ctx, user)
		if err != nil {
			t.Fatalf("can create with %d used: %v", used, err)
		}
		if ok != want {
			t.Errorf("can create with %d used = %v, want %v", used, ok, want)
		}
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "subscriber")
	plan := f.plan(t, "Creator", 50)
	ctx := context.Background()

	payment, err := f.svc.Subscribe(ctx, user, &structs.SubscribeRequest{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if payment.Status != structs.PaymentPending {
		t.Errorf("payment status = %q, want pending", payment.Status)
	}

	// Pending subscriptions do not raise the quota yet.
	status, err := f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if status.PostLimit != service.FreeMonthlyPostLimit {
		t.Errorf("limit before payment = %d, want %d", status.PostLimit, service.FreeMonthlyPostLimit)
	}

	if err := f.svc.HandleWebhook(ctx, &structs.WebhookRequest{Reference: payment.Reference, Status: "succeeded"}); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	status, err = f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status after payment: %v", err)
	}
	if status.PlanName != plan.Name || status.PostLimit != 50 {
		t.Errorf("status after payment = %+v, want plan %q with limit 50", status, plan.Name)
	}

	payments, err := f.svc.ListPayments(ctx, user, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Status != structs.PaymentSucceeded {
		t.Fatalf("payments = %+v, want one succeeded entry", payments)
	}

	if _, err := f.svc.Subscribe(ctx, user, &structs.SubscribeRequest{PlanID: plan.ID}); !errors.Is(err, service.ErrAlreadySubscribed) {
		t.Fatalf("second subscribe: got %v, want ErrAlreadySubscribed", err)
	}
}

func TestWebhookIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "subscriber")
	plan := f.plan(t, "Creator", 50)
	payment := f.subscribe(t, user, plan.ID)
	ctx := context.Background()

	// A replayed callback, even one flipping the outcome, changes nothing.
	if err := f.svc.HandleWebhook(ctx, &structs.WebhookRequest{Reference: payment.Reference, Status: "failed"}); err != nil {
		t.Fatalf("replayed webhook: %v", err)
	}
	status, err := f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if status.PostLimit != 50 {
		t.Errorf("limit after replay = %d, want 50", status.PostLimit)
	}

	if err := f.svc.HandleWebhook(ctx, &structs.WebhookRequest{Reference: "no-such-ref", Status: "succeeded"}); !errors.Is(err, service.ErrPaymentNotFound) {
		t.Fatalf("unknown reference: got %v, want ErrPaymentNotFound", err)
	}
}

func TestFailedPaymentCancelsSubscription(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "subscriber")
	plan := f.plan(t, "Creator", 50)
	ctx := context.Background()

	payment, err := f.svc.Subscribe(ctx, user, &structs.SubscribeRequest{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := f.svc.HandleWebhook(ctx, &structs.WebhookRequest{Reference: payment.Reference, Status: "failed"}); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	status, err := f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if status.PlanName != "free" {
		t.Errorf("plan after failed payment = %q, want free", status.PlanName)
	}

	// The slot is open again for another attempt.
	if _, err := f.svc.Subscribe(ctx, user, &structs.SubscribeRequest{PlanID: plan.ID}); err != nil {
		t.Fatalf("resubscribe after failure: %v", err)
	}
}

func TestUnlimitedPlan(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "power")
	plan := f.plan(t, "Unlimited", 0)
	f.subscribe(t, user, plan.ID)
	ctx := context.Background()

	status, err := f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if !status.Unlimited {
		t.Fatalf("status = %+v, want unlimited", status)
	}

	f.counter.counts[user] = 10000
	ok, err := f.svc.CanCreatePost(ctx, user)
	if err != nil || !ok {
		t.Fatalf("can create = %v, %v, want true", ok, err)
	}
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "subscriber")
	stranger := f.user(t, "stranger")
	plan := f.plan(t, "Creator", 50)
	payment := f.subscribe(t, user, plan.ID)
	ctx := context.Background()

	// Payment.Reference carries the subscription id.
	if err := f.svc.CancelSubscription(ctx, payment.Reference, stranger); !errors.Is(err, service.ErrSubscriptionNotFound) {
		t.Fatalf("cancel by stranger: got %v, want ErrSubscriptionNotFound", err)
	}
	if err := f.svc.CancelSubscription(ctx, payment.Reference, user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	status, err := f.svc.QuotaStatus(ctx, user)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if status.PlanName != "free" {
		t.Errorf("plan after cancel = %q, want free", status.PlanName)
	}
}
