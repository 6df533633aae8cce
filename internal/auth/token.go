package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour

	tokenIssuer = "adgenie"
	kindRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims identify an authenticated user. Access tokens carry no
// token_kind claim; refresh tokens are distinguished by its presence.
type AccessClaims struct {
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	TokenKind string `json:"token_kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies JWTs with a symmetric HS256 key. It is stateless;
// revocation is the caller's concern.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	if accessTTL <= 0 {
		accessTTL = AccessTokenExpiry
	}
	if refreshTTL <= 0 {
		refreshTTL = RefreshTokenExpiry
	}
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Codec) IssueAccess(userID uuid.UUID, email, tier string) (string, error) {
	now := c.now()
	claims := &AccessClaims{
		Email:            email,
		SubscriptionTier: tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// IssueRefresh returns the signed refresh token together with its token ID.
// The ID doubles as the jti claim and the persisted record's primary key.
func (c *Codec) IssueRefresh(userID uuid.UUID) (string, uuid.UUID, error) {
	now := c.now()
	tokenID := uuid.New()
	claims := &RefreshClaims{
		TokenKind: kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", uuid.Nil, err
	}
	return signed, tokenID, nil
}

// VerifyAccess checks signature and expiry and rejects refresh tokens
// presented as access tokens.
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	// A refresh token parses into AccessClaims too; reject it by re-parsing
	// for the kind marker.
	kind := &RefreshClaims{}
	if err := c.parse(tokenString, kind); err == nil && kind.TokenKind == kindRefresh {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyRefresh checks signature and expiry and requires the refresh kind
// marker. It does not consult revocation state.
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenKind != kindRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashToken is the one-way hash applied to raw tokens and reset codes before
// they touch persistence.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
