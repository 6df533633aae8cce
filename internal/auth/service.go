package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/logger"
)

// UserStore is the slice of user persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// TokenStore persists refresh-token records by hash.
type TokenStore interface {
	Create(ctx context.Context, token *db.RefreshToken) error
	Consume(ctx context.Context, userID uuid.UUID, tokenHash string) (*db.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) error
}

// ResetStore persists password-reset codes by hash.
type ResetStore interface {
	Create(ctx context.Context, token *db.PasswordResetToken) error
	InvalidateActiveForUser(ctx context.Context, userID uuid.UUID) error
	FindActive(ctx context.Context, userID uuid.UUID, codeHash string) (*db.PasswordResetToken, error)
	CompleteReset(ctx context.Context, userID uuid.UUID, codeHash, newPasswordHash string) error
	DeleteExpired(ctx context.Context) error
}

// Blacklist revokes access tokens before their natural expiry. Logout adds
// the token; CurrentUser checks it.
type Blacklist interface {
	Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// UserView is the public shape of a user returned by auth endpoints.
type UserView struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthResponse is a token pair plus the owning user.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	User         *UserView `json:"user"`
}

type Service struct {
	users        UserStore
	tokens       TokenStore
	resets       ResetStore
	codec        *Codec
	loginLimiter Limiter
	resetLimiter Limiter
	blacklist    Blacklist
	resetCodeTTL time.Duration
	log          *logger.Logger
}

func NewService(
	users UserStore,
	tokens TokenStore,
	resets ResetStore,
	codec *Codec,
	loginLimiter Limiter,
	resetLimiter Limiter,
	blacklist Blacklist,
	resetCodeTTL time.Duration,
) *Service {
	if resetCodeTTL <= 0 {
		resetCodeTTL = time.Hour
	}
	return &Service{
		users:        users,
		tokens:       tokens,
		resets:       resets,
		codec:        codec,
		loginLimiter: loginLimiter,
		resetLimiter: resetLimiter,
		blacklist:    blacklist,
		resetCodeTTL: resetCodeTTL,
		log:          logger.WithComponent("auth"),
	}
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// uniqueness checks run on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a free-tier account. A concurrent duplicate signup loses at
// the database's unique constraint, not at the pre-check.
func (s *Service) Signup(ctx context.Context, email, name, password string) (*AuthResponse, error) {
	email = NormalizeEmail(email)

	if ok, reason := ValidatePasswordStrength(password); !ok {
		return nil, apperrors.WeakPassword(reason)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password").WithCause(err)
	}

	now := time.Now()
	user := &db.User{
		ID:               uuid.New(),
		Email:            email,
		Name:             strings.TrimSpace(name),
		PasswordHash:     db.NullStringOf(passwordHash),
		SubscriptionTier: db.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return nil, apperrors.EmailExists()
		}
		return nil, apperrors.DatabaseError("failed to create user").WithCause(err)
	}

	s.log.Info(ctx, "user signed up", map[string]any{"user_id": user.ID.String()})
	return s.issueTokens(ctx, user)
}

// Login authenticates by email and password. The limiter is consulted before
// credentials are touched, and the failure message never distinguishes an
// unknown email from a wrong password.
func (s *Service) Login(ctx context.Context, email, password, sourceIP string) (*AuthResponse, error) {
	if !s.loginLimiter.Allow(sourceIP) {
		retry := int(s.loginLimiter.RetryAfter(sourceIP).Seconds()) + 1
		s.log.Warn(ctx, "login rate limited", map[string]any{"source_ip": sourceIP})
		return nil, apperrors.RateLimited(retry)
	}

	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			s.loginLimiter.RecordFailure(sourceIP)
			return nil, apperrors.InvalidCredentials()
		}
		return nil, apperrors.DatabaseError("failed to look up user").WithCause(err)
	}

	if !user.PasswordHash.Valid || !VerifyPassword(password, user.PasswordHash.String) {
		s.loginLimiter.RecordFailure(sourceIP)
		return nil, apperrors.InvalidCredentials()
	}

	s.log.Info(ctx, "user logged in", map[string]any{"user_id": user.ID.String()})
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token. The persisted record is checked and
// revoked in one statement, so a replay of an already-rotated token fails
// even under concurrent attempts.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*AuthResponse, error) {
	claims, err := s.codec.VerifyRefresh(rawRefreshToken)
	if err != nil {
		return nil, s.tokenError(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.InvalidToken("invalid refresh token")
	}

	tokenHash := HashToken(rawRefreshToken)
	if _, err := s.tokens.Consume(ctx, userID, tokenHash); err != nil {
		if errors.Is(err, db.ErrTokenNotFound) {
			// Rotated, revoked, or forged. All look the same to the caller.
			return nil, apperrors.InvalidToken("invalid refresh token")
		}
		return nil, apperrors.DatabaseError("failed to rotate refresh token").WithCause(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, apperrors.InvalidToken("invalid refresh token")
		}
		return nil, apperrors.DatabaseError("failed to load user").WithCause(err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes every active refresh token for the caller and blacklists
// the presented access token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, rawAccessToken string) error {
	claims, err := s.codec.VerifyAccess(rawAccessToken)
	if err != nil {
		return s.tokenError(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return apperrors.InvalidToken("invalid access token")
	}

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return apperrors.DatabaseError("failed to revoke sessions").WithCause(err)
	}

	if s.blacklist != nil && claims.ExpiresAt != nil {
		remaining := time.Until(claims.ExpiresAt.Time)
		if remaining > 0 {
			if err := s.blacklist.Revoke(ctx, HashToken(rawAccessToken), remaining); err != nil {
				// The refresh tokens are already dead; the access token
				// expires on its own within minutes.
				s.log.Warn(ctx, "failed to blacklist access token", map[string]any{"error": err.Error()})
			}
		}
	}

	s.log.Info(ctx, "user logged out", map[string]any{"user_id": userID.String()})
	return nil
}

// RequestPasswordReset issues a 6-digit code for the account, if one exists.
// The response is identical whether or not the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return "", nil
		}
		return "", apperrors.DatabaseError("failed to look up user").WithCause(err)
	}

	code, err := generateResetCode()
	if err != nil {
		return "", apperrors.InternalError("failed to generate reset code").WithCause(err)
	}

	if err := s.resets.InvalidateActiveForUser(ctx, user.ID); err != nil {
		return "", apperrors.DatabaseError("failed to invalidate reset codes").WithCause(err)
	}

	now := time.Now()
	record := &db.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		CodeHash:  HashToken(code),
		ExpiresAt: now.Add(s.resetCodeTTL),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, record); err != nil {
		return "", apperrors.DatabaseError("failed to store reset code").WithCause(err)
	}

	s.log.Info(ctx, "password reset requested", map[string]any{"user_id": user.ID.String()})
	return code, nil
}

// ConfirmPasswordReset redeems a reset code. The password change, the
// single-use marking of the code, and the revocation of all refresh tokens
// commit together. Failures are generic to the caller; only logs distinguish
// an unknown email from a bad code.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)

	if !s.resetLimiter.Allow(email) {
		retry := int(s.resetLimiter.RetryAfter(email).Seconds()) + 1
		s.log.Warn(ctx, "reset confirm rate limited", map[string]any{"email": email})
		return apperrors.RateLimited(retry)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			s.resetLimiter.RecordFailure(email)
			return apperrors.InvalidReset()
		}
		return apperrors.DatabaseError("failed to look up user").WithCause(err)
	}

	codeHash := HashToken(code)
	if _, err := s.resets.FindActive(ctx, user.ID, codeHash); err != nil {
		if errors.Is(err, db.ErrResetNotFound) {
			s.resetLimiter.RecordFailure(email)
			s.log.Warn(ctx, "reset code rejected", map[string]any{"user_id": user.ID.String()})
			return apperrors.InvalidReset()
		}
		return apperrors.DatabaseError("failed to look up reset code").WithCause(err)
	}

	if ok, reason := ValidatePasswordStrength(newPassword); !ok {
		return apperrors.WeakPassword(reason)
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return apperrors.InternalError("failed to hash password").WithCause(err)
	}

	if err := s.resets.CompleteReset(ctx, user.ID, codeHash, newHash); err != nil {
		if errors.Is(err, db.ErrResetNotFound) {
			// Consumed by a concurrent confirm between the check and here.
			s.resetLimiter.RecordFailure(email)
			return apperrors.InvalidReset()
		}
		return apperrors.DatabaseError("failed to complete password reset").WithCause(err)
	}

	s.log.Info(ctx, "password reset completed", map[string]any{"user_id": user.ID.String()})
	return nil
}

// CurrentUser resolves an access token to its live account. Tokens for
// deleted users and blacklisted tokens fail the same way invalid ones do.
func (s *Service) CurrentUser(ctx context.Context, rawAccessToken string) (*db.User, error) {
	claims, err := s.codec.VerifyAccess(rawAccessToken)
	if err != nil {
		return nil, s.tokenError(err)
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsRevoked(ctx, HashToken(rawAccessToken))
		if err != nil {
			return nil, apperrors.InternalError("failed to check token state").WithCause(err)
		}
		if revoked {
			return nil, apperrors.InvalidToken("invalid access token")
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.InvalidToken("invalid access token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, apperrors.InvalidToken("invalid access token")
		}
		return nil, apperrors.DatabaseError("failed to load user").WithCause(err)
	}

	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user *db.User) (*AuthResponse, error) {
	accessToken, err := s.codec.IssueAccess(user.ID, user.Email, string(user.SubscriptionTier))
	if err != nil {
		return nil, apperrors.InternalError("failed to issue access token").WithCause(err)
	}

	refreshToken, tokenID, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperrors.InternalError("failed to issue refresh token").WithCause(err)
	}

	now := time.Now()
	record := &db.RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: now.Add(s.codec.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, apperrors.DatabaseError("failed to store refresh token").WithCause(err)
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.codec.AccessTTL().Seconds()),
		User:         NewUserView(user),
	}, nil
}

// PurgeExpired removes refresh tokens and reset codes that can never be
// used again. Meant to run on a timer.
func (s *Service) PurgeExpired(ctx context.Context) error {
	if err := s.tokens.DeleteExpired(ctx); err != nil {
		return fmt.Errorf("purge refresh tokens: %w", err)
	}
	if err := s.resets.DeleteExpired(ctx); err != nil {
		return fmt.Errorf("purge reset codes: %w", err)
	}
	return nil
}

func (s *Service) tokenError(err error) error {
	if errors.Is(err, ErrTokenExpired) {
		return apperrors.TokenExpired()
	}
	return apperrors.InvalidToken("invalid token")
}

func NewUserView(user *db.User) *UserView {
	return &UserView{
		ID:               user.ID.String(),
		Email:            user.Email,
		Name:             user.Name,
		SubscriptionTier: string(user.SubscriptionTier),
		CreatedAt:        user.CreatedAt,
	}
}

// generateResetCode draws a uniform 6-digit numeric code. Leading zeros are
// valid.
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
