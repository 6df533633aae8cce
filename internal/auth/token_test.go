package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestCodec() *Codec {
	return NewCodec("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := newTestCodec()
	userID := uuid.New()

	token, err := codec.IssueAccess(userID, "test@example.com", "pro")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}

	claims, err := codec.VerifyAccess(token)
	if err != nil {
		t.Fatalf("failed to verify access token: %v", err)
	}

	if claims.Subject != userID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, userID.String())
	}
	if claims.Email != "test@example.com" {
		t.Errorf("email = %q, want %q", claims.Email, "test@example.com")
	}
	if claims.SubscriptionTier != "pro" {
		t.Errorf("tier = %q, want %q", claims.SubscriptionTier, "pro")
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := newTestCodec()
	userID := uuid.New()

	token, tokenID, err := codec.IssueRefresh(userID)
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}
	if tokenID == uuid.Nil {
		t.Error("token ID should not be nil")
	}

	claims, err := codec.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("failed to verify refresh token: %v", err)
	}

	if claims.Subject != userID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, userID.String())
	}
	if claims.ID != tokenID.String() {
		t.Errorf("jti = %q, want %q", claims.ID, tokenID.String())
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	codec := newTestCodec()

	refresh, _, err := codec.IssueRefresh(uuid.New())
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	if _, err := codec.VerifyAccess(refresh); err != ErrInvalidToken {
		t.Errorf("VerifyAccess(refresh token) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRefreshRejectsAccessToken(t *testing.T) {
	codec := newTestCodec()

	access, err := codec.IssueAccess(uuid.New(), "test@example.com", "free")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}

	if _, err := codec.VerifyRefresh(access); err != ErrInvalidToken {
		t.Errorf("VerifyRefresh(access token) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	codec := newTestCodec()
	other := NewCodec("different-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := codec.IssueAccess(uuid.New(), "test@example.com", "free")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}

	if _, err := other.VerifyAccess(token); err != ErrInvalidToken {
		t.Errorf("verify with wrong key error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := newTestCodec()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := codec.VerifyAccess(token); err != ErrInvalidToken {
			t.Errorf("VerifyAccess(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := newTestCodec()

	issued := time.Now()
	codec.now = func() time.Time { return issued }

	token, err := codec.IssueAccess(uuid.New(), "test@example.com", "free")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}

	codec.now = func() time.Time { return issued.Add(16 * time.Minute) }

	if _, err := codec.VerifyAccess(token); err != ErrTokenExpired {
		t.Errorf("expired token error = %v, want ErrTokenExpired", err)
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	hash1 := HashToken("token-one")
	hash1Again := HashToken("token-one")
	hash2 := HashToken("token-two")

	if hash1 != hash1Again {
		t.Error("same input should produce the same hash")
	}
	if hash1 == hash2 {
		t.Error("different inputs should produce different hashes")
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash1))
	}
}
