// Package service implements registration, login, token and profile flows.
package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/ncobase/ncore/messaging/email"
	securityjwt "github.com/ncobase/ncore/security/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/sohan284/social-media-go/core/account/data/repository"
	"github.com/sohan284/social-media-go/core/account/oauth"
	"github.com/sohan284/social-media-go/core/account/structs"
	"github.com/sohan284/social-media-go/internal/tasks"
)

type Role = structs.Role

type User = structs.User

type Profile = structs.Profile

type TokenPair = structs.TokenPair

const (
	RoleUser      = structs.RoleUser
	RoleModerator = structs.RoleModerator
	RoleAdmin     = structs.RoleAdmin
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidCode        = errors.New("invalid code")
	ErrCredentialsSet     = errors.New("credentials already set")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrNotProfileOwner    = errors.New("not the profile owner")
)

type Service struct {
	db          *sql.DB
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository

	tokenManager *securityjwt.TokenManager
	accessTTL    time.Duration
	refreshTTL   time.Duration

	sender   email.Sender
	verifier oauth.Verifier
	runner   *tasks.Runner
	logger   *logger.Logger
}

func NewService(
	db *sql.DB,
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	jwtSecret string,
	accessTTL, refreshTTL time.Duration,
	sender email.Sender,
	verifier oauth.Verifier,
	runner *tasks.Runner,
	log *logger.Logger,
) *Service {
	tokenManager := securityjwt.NewTokenManager(jwtSecret, &securityjwt.TokenConfig{
		AccessTokenExpiry:  accessTTL,
		RefreshTokenExpiry: refreshTTL,
	})

	return &Service{
		db:           db,
		userRepo:     userRepo,
		profileRepo:  profileRepo,
		sessionRepo:  sessionRepo,
		tokenManager: tokenManager,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		sender:       sender,
		verifier:     verifier,
		runner:       runner,
		logger:       log,
	}
}

// TokenManager exposes the signer so middleware can validate tokens.
func (s *Service) TokenManager() *securityjwt.TokenManager {
	return s.tokenManager
}

// SendOTP creates the user if needed and mails a fresh verification code.
// Re-sending resets the verified flag so a stale code can never verify.
func (s *Service) SendOTP(ctx context.Context, address string) error {
	address = strings.ToLower(address)

	code, err := generateCode()
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, address)
	if errors.Is(err, sql.ErrNoRows) {
		user, err = s.createUser(ctx, address, usernameFromEmail(address))
	}
	if err != nil {
		return err
	}

	user.VerificationCode = code
	user.EmailVerified = false
	user.IsOAuthUser = false
	user.UsernameSet = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.deliverCode(address, "Your verification code", code)
	s.logger.Info(ctx, "Verification code issued", "email", address)
	return nil
}

// VerifyOTP marks the email verified and burns the code.
func (s *Service) VerifyOTP(ctx context.Context, address, code string) error {
	address = strings.ToLower(address)

	user, err := s.userRepo.FindByEmail(ctx, address)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if user.VerificationCode == "" || user.VerificationCode != code {
		return ErrInvalidCode
	}

	user.EmailVerified = true
	user.VerificationCode = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info(ctx, "Email verified", "user_id", user.ID)
	return nil
}

// SetCredentials fixes username and password for a verified user, once.
func (s *Service) SetCredentials(ctx context.Context, address, username, password string) (*User, *TokenPair, error) {
	address = strings.ToLower(address)

	user, err := s.userRepo.FindByEmail(ctx, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if !user.EmailVerified {
		return nil, nil, ErrEmailNotVerified
	}
	if user.UsernameSet {
		return nil, nil, ErrCredentialsSet
	}

	taken, err := s.userRepo.UsernameTaken(ctx, username, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user.Username = username
	user.PasswordHash = string(hashed)
	user.UsernameSet = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "Credentials set", "user_id", user.ID, "username", username)
	return user, tokens, nil
}

// Login accepts either email or username.
func (s *Service) Login(ctx context.Context, key, password string) (*TokenPair, error) {
	user, err := s.userRepo.FindByUsername(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		user, err = s.userRepo.FindByEmail(ctx, strings.ToLower(key))
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "User logged in", "user_id", user.ID)
	return tokens, nil
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenManager.DecodeToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !securityjwt.IsRefreshToken(claims) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessionRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessionRepo.DeleteByRefreshToken(ctx, refreshToken)
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	_ = s.sessionRepo.DeleteByRefreshToken(ctx, refreshToken)

	s.logger.Info(ctx, "Token refreshed", "user_id", user.ID)
	return tokens, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessionRepo.DeleteByRefreshToken(ctx, refreshToken)
}

func (s *Service) ValidateToken(token string) (map[string]any, error) {
	claims, err := s.tokenManager.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if !securityjwt.IsAccessToken(claims) {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SendPasswordResetOTP mails a reset code to an existing verified account.
func (s *Service) SendPasswordResetOTP(ctx context.Context, address string) error {
	address = strings.ToLower(address)

	user, err := s.userRepo.FindByEmail(ctx, address)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !user.EmailVerified {
		return ErrEmailNotVerified
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	user.VerificationCode = code
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.deliverCode(address, "Your password reset code", code)
	s.logger.Info(ctx, "Password reset code issued", "user_id", user.ID)
	return nil
}

// VerifyPasswordResetOTP checks the code without consuming it, so the reset
// call that follows can present it again.
func (s *Service) VerifyPasswordResetOTP(ctx context.Context, address, code string) error {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(address))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if user.VerificationCode == "" || user.VerificationCode != code {
		return ErrInvalidCode
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, address, code, password string) error {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(address))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if user.VerificationCode == "" || user.VerificationCode != code {
		return ErrInvalidCode
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hashed)
	user.VerificationCode = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	_ = s.sessionRepo.DeleteByUserID(ctx, user.ID)
	s.logger.Info(ctx, "Password reset", "user_id", user.ID)
	return nil
}

// OAuthRegister verifies the provider token and creates or reuses the
// account behind its email. OAuth accounts skip code verification.
func (s *Service) OAuthRegister(ctx context.Context, provider, accessToken string) (*User, *TokenPair, error) {
	address, err := s.verifier.Email(ctx, provider, accessToken)
	if err != nil {
		return nil, nil, err
	}
	address = strings.ToLower(address)

	user, err := s.userRepo.FindByEmail(ctx, address)
	if errors.Is(err, sql.ErrNoRows) {
		user, err = s.createUser(ctx, address, usernameFromEmail(address))
		if err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, err
	}

	user.EmailVerified = true
	user.IsOAuthUser = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "OAuth register", "user_id", user.ID, "provider", provider)
	return user, tokens, nil
}

// OAuthLogin verifies the provider token against an existing account.
func (s *Service) OAuthLogin(ctx context.Context, provider, accessToken string) (*User, *TokenPair, error) {
	address, err := s.verifier.Email(ctx, provider, accessToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "OAuth login", "user_id", user.ID, "provider", provider)
	return user, tokens, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) GetProfileByID(ctx context.Context, profileID string) (*Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return profile, err
}

func (s *Service) GetProfileByUserID(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return profile, err
}

func (s *Service) ListProfiles(ctx context.Context, before time.Time, limit int) ([]*Profile, error) {
	return s.profileRepo.List(ctx, before, limit)
}

func (s *Service) SearchProfiles(ctx context.Context, query string, before time.Time, limit int) ([]*Profile, error) {
	return s.profileRepo.Search(ctx, query, before, limit)
}

// ProfileUpdate carries the mutable profile fields; nil means keep.
type ProfileUpdate struct {
	DisplayName   *string
	About         *string
	SocialLink    *string
	Avatar        *string
	CoverPhoto    *string
	Subcategories []string
}

// UpdateProfile applies the update after checking ownership.
func (s *Service) UpdateProfile(ctx context.Context, profileID, callerID string, update *ProfileUpdate) (*Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if profile.UserID != callerID {
		return nil, ErrNotProfileOwner
	}

	if update.DisplayName != nil {
		profile.DisplayName = *update.DisplayName
	}
	if update.About != nil {
		profile.About = *update.About
	}
	if update.SocialLink != nil {
		profile.SocialLink = *update.SocialLink
	}
	if update.Avatar != nil {
		profile.Avatar = *update.Avatar
	}
	if update.CoverPhoto != nil {
		profile.CoverPhoto = *update.CoverPhoto
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}

	if update.Subcategories != nil {
		if err := s.profileRepo.SetSubcategories(ctx, profile.ID, update.Subcategories); err != nil {
			return nil, err
		}
		profile.Subcategories = update.Subcategories
	}

	s.logger.Info(ctx, "Profile updated", "profile_id", profile.ID)
	return profile, nil
}

// ListUsers pages over all accounts, newest first. Admin only at the
// handler layer.
func (s *Service) ListUsers(ctx context.Context, before time.Time, limit int) ([]*User, error) {
	return s.userRepo.List(ctx, before, limit)
}

// DeleteUser removes the account, its profile and every open session.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.userRepo.FindByID(ctx, userID); errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	} else if err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "User deleted", "user_id", userID)
	return nil
}

// createUser inserts the user and its profile in one transaction.
func (s *Service) createUser(ctx context.Context, address, username string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     address,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &Profile{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.userRepo.Create(ctx, tx, user); err != nil {
		return nil, err
	}
	if err := s.profileRepo.Create(ctx, tx, profile); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	payload := map[string]any{
		"user_id":      user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"role":         string(user.Role),
		"username_set": user.UsernameSet,
	}

	accessToken, err := s.tokenManager.GenerateAccessToken(user.ID, payload, &securityjwt.TokenConfig{Expiry: s.accessTTL})
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokenManager.GenerateRefreshToken(user.ID, payload, &securityjwt.TokenConfig{Expiry: s.refreshTTL})
	if err != nil {
		return nil, err
	}

	session := &structs.Session{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.refreshTTL),
		CreatedAt:    time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) deliverCode(address, subject, code string) {
	if s.sender == nil {
		s.logger.Warn(context.Background(), "No mail sender configured, code not delivered", "email", address)
		return
	}
	s.runner.Submit("send-verification-email", func() error {
		_, err := s.sender.SendTemplateEmail(address, email.Template{
			Subject: subject,
			Keyword: code,
		})
		return err
	})
}

func usernameFromEmail(address string) string {
	local := address
	if i := strings.Index(address, "@"); i > 0 {
		local = address[:i]
	}
	// A uuid suffix keeps the placeholder unique until set-credentials runs.
	return local + "-" + uuid.New().String()[:8]
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
