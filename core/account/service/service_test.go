package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/core/account/data/repository"
	"github.com/sohan284/social-media-go/core/account/service"
	"github.com/sohan284/social-media-go/core/account/structs"
)

type fixture struct {
	svc      *service.Service
	userRepo repository.UserRepository
	db       *sql.DB
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

	userRepo, profileRepo, sessionRepo, err := repository.NewRepositories(db)
	if err != nil {
		t.Fatalf("init repositories: %v", err)
	}

	svc := service.NewService(db, userRepo, profileRepo, sessionRepo,
		"test-secret", 15*time.Minute, 7*24*time.Hour,
		nil, nil, nil, testLogger(t))

	return &fixture{svc: svc, userRepo: userRepo, db: db}
}

// register walks the OTP flow and returns the issued tokens.
func register(t *testing.T, f *fixture, email, username, password string) *structs.TokenPair {
	t.Helper()
	ctx := context.Background()

	if err := f.svc.SendOTP(ctx, email); err != nil {
		t.Fatalf("send otp: %v", err)
	}

	user, err := f.userRepo.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if err := f.svc.VerifyOTP(ctx, email, user.VerificationCode); err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	_, tokens, err := f.svc.SetCredentials(ctx, email, username, password)
	if err != nil {
		t.Fatalf("set credentials: %v", err)
	}
	return tokens
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send otp: %v", err)
	}

	user, err := f.userRepo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.EmailVerified {
		t.Error("user should not be verified before the code is checked")
	}
	if len(user.VerificationCode) != 6 {
		t.Errorf("verification code = %q, want 6 digits", user.VerificationCode)
	}

	// Profile is created alongside the user.
	if _, err := f.svc.GetProfileByUserID(ctx, user.ID); err != nil {
		t.Fatalf("profile missing after registration: %v", err)
	}

	if err := f.svc.VerifyOTP(ctx, "alice@example.com", "000000"); !errors.Is(err, service.ErrInvalidCode) {
		t.Fatalf("wrong code: got %v, want ErrInvalidCode", err)
	}
	if err := f.svc.VerifyOTP(ctx, "alice@example.com", user.VerificationCode); err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	// The code burns on use.
	if err := f.svc.VerifyOTP(ctx, "alice@example.com", user.VerificationCode); !errors.Is(err, service.ErrInvalidCode) {
		t.Fatalf("reused code: got %v, want ErrInvalidCode", err)
	}

	_, tokens, err := f.svc.SetCredentials(ctx, "alice@example.com", "alice", "s3cure-pass")
	if err != nil {
		t.Fatalf("set credentials: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Error("expected both tokens after set-credentials")
	}

	// Credentials are set exactly once.
	_, _, err = f.svc.SetCredentials(ctx, "alice@example.com", "alice2", "another-pass")
	if !errors.Is(err, service.ErrCredentialsSet) {
		t.Fatalf("second set-credentials: got %v, want ErrCredentialsSet", err)
	}
}

func TestSetCredentialsRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendOTP(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	_, _, err := f.svc.SetCredentials(ctx, "bob@example.com", "bob", "s3cure-pass")
	if !errors.Is(err, service.ErrEmailNotVerified) {
		t.Fatalf("got %v, want ErrEmailNotVerified", err)
	}
}

func TestResendOTPResetsVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendOTP(ctx, "carol@example.com"); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	first, _ := f.userRepo.FindByEmail(ctx, "carol@example.com")
	if err := f.svc.VerifyOTP(ctx, "carol@example.com", first.VerificationCode); err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	if err := f.svc.SendOTP(ctx, "carol@example.com"); err != nil {
		t.Fatalf("resend otp: %v", err)
	}
	second, _ := f.userRepo.FindByEmail(ctx, "carol@example.com")
	if second.EmailVerified {
		t.Error("resending the code must reset the verified flag")
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "dave@example.com", "dave", "s3cure-pass")

	if _, err := f.svc.Login(ctx, "dave", "s3cure-pass"); err != nil {
		t.Fatalf("login by username: %v", err)
	}
	if _, err := f.svc.Login(ctx, "dave@example.com", "s3cure-pass"); err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if _, err := f.svc.Login(ctx, "dave", "wrong-pass"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(ctx, "nobody", "s3cure-pass"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := register(t, f, "erin@example.com", "erin", "s3cure-pass")

	rotated, err := f.svc.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Error("refresh must rotate the refresh token")
	}

	// The old refresh token is dead after rotation.
	if _, err := f.svc.RefreshToken(ctx, tokens.RefreshToken); err == nil {
		t.Error("expected rotated-out refresh token to be rejected")
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := register(t, f, "frank@example.com", "frank", "s3cure-pass")

	if err := f.svc.Logout(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.RefreshToken(ctx, tokens.RefreshToken); err == nil {
		t.Error("expected refresh to fail after logout")
	}
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "grace@example.com", "grace", "old-password")

	if err := f.svc.SendPasswordResetOTP(ctx, "grace@example.com"); err != nil {
		t.Fatalf("send reset otp: %v", err)
	}
	user, _ := f.userRepo.FindByEmail(ctx, "grace@example.com")

	if err := f.svc.VerifyPasswordResetOTP(ctx, "grace@example.com", user.VerificationCode); err != nil {
		t.Fatalf("verify reset otp: %v", err)
	}
	// Verification alone does not consume the code.
	if err := f.svc.ResetPassword(ctx, "grace@example.com", user.VerificationCode, "new-password"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, err := f.svc.Login(ctx, "grace", "old-password"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := f.svc.Login(ctx, "grace", "new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUpdateProfileOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "heidi@example.com", "heidi", "s3cure-pass")
	register(t, f, "ivan@example.com", "ivan", "s3cure-pass")

	heidi, _ := f.userRepo.FindByEmail(ctx, "heidi@example.com")
	ivan, _ := f.userRepo.FindByEmail(ctx, "ivan@example.com")

	profile, err := f.svc.GetProfileByUserID(ctx, heidi.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}

	name := "Heidi H."
	updated, err := f.svc.UpdateProfile(ctx, profile.ID, heidi.ID, &service.ProfileUpdate{DisplayName: &name})
	if err != nil {
		t.Fatalf("update own profile: %v", err)
	}
	if updated.DisplayName != "Heidi H." {
		t.Errorf("display name = %q", updated.DisplayName)
	}

	_, err = f.svc.UpdateProfile(ctx, profile.ID, ivan.ID, &service.ProfileUpdate{DisplayName: &name})
	if !errors.Is(err, service.ErrNotProfileOwner) {
		t.Fatalf("foreign update: got %v, want ErrNotProfileOwner", err)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "judy@example.com", "judy", "s3cure-pass")

	user, _ := f.userRepo.FindByEmail(ctx, "judy@example.com")
	if err := f.svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := f.svc.GetUserByID(ctx, user.ID); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}
