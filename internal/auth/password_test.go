package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	password := "Sup3rSecret!"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if !VerifyPassword(password, hash) {
		t.Error("verification failed for the correct password")
	}

	if VerifyPassword("wrongpassword", hash) {
		t.Error("verification succeeded for a wrong password")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	hash1, err := HashPassword("Sup3rSecret!")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	hash2, err := HashPassword("Sup3rSecret!")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if hash1 == hash2 {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHashPasswordEdgeInputs(t *testing.T) {
	for _, password := range []string{"", "pässwörd-ünïcode", strings.Repeat("x", 72)} {
		hash, err := HashPassword(password)
		if err != nil {
			t.Errorf("hash failed for %q: %v", password, err)
			continue
		}
		if !VerifyPassword(password, hash) {
			t.Errorf("round trip failed for %q", password)
		}
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if VerifyPassword("anything", "not-a-bcrypt-hash") {
		t.Error("malformed hash should verify as false")
	}
	if VerifyPassword("anything", "") {
		t.Error("empty hash should verify as false")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		wantOK     bool
		wantReason string
	}{
		{
			name:     "valid password",
			password: "GoodPass1!",
			wantOK:   true,
		},
		{
			name:       "too short",
			password:   "Ab1!",
			wantReason: "password must be at least 8 characters long",
		},
		{
			name:       "too long",
			password:   "Aa1!" + strings.Repeat("x", 130),
			wantReason: "password must be at most 128 characters long",
		},
		{
			name:       "missing uppercase",
			password:   "goodpass1!",
			wantReason: "password must contain at least one uppercase letter",
		},
		{
			name:       "missing lowercase",
			password:   "GOODPASS1!",
			wantReason: "password must contain at least one lowercase letter",
		},
		{
			name:       "missing digit",
			password:   "GoodPass!!",
			wantReason: "password must contain at least one digit",
		},
		{
			name:       "missing symbol",
			password:   "GoodPass11",
			wantReason: "password must contain at least one special character",
		},
		{
			name:       "length reported before missing classes",
			password:   "a",
			wantReason: "password must be at least 8 characters long",
		},
		{
			name:       "uppercase reported before later missing classes",
			password:   "allsameclass",
			wantReason: "password must contain at least one uppercase letter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidatePasswordStrength(tt.password)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}
