// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and issuer enforcement

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

// signClaims signs arbitrary claims so tests can build tokens Generate refuses to.
func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	principalID := "desktop-client"
	token, err := verifier.Generate(principalID, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gotID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if gotID != principalID {
		t.Errorf("Verify() = %q, want %q", gotID, principalID)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				token, _ := NewJWTVerifier([]byte("different-secret")).Generate("desktop-client", time.Hour)
				return token
			}(),
		},
		{
			name:  "wrong issuer",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "x", "iss": "someone-else", "exp": future}),
		},
		{
			name:  "no expiry",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "x", "iss": Issuer}),
		},
		{
			name:  "different HMAC size",
			token: signClaims(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "x", "iss": Issuer, "exp": future}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if err == nil {
				t.Fatal("Verify() should have returned an error")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"iss": Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(token)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	// Expired an hour ago, well past the leeway.
	token := signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "desktop-client",
		"iss": Issuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_GenerateRejectsBadInput(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	if _, err := verifier.Generate("", time.Hour); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Generate(\"\") error = %v, want ErrMissingClaim", err)
	}
	if _, err := verifier.Generate("desktop-client", -time.Hour); err == nil {
		t.Error("Generate() with negative lifetime should fail")
	}
}

func TestJWTVerifier_DifferentPrincipals(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	for _, principalID := range []string{"probe", "claude-desktop", "ci"} {
		token, err := verifier.Generate(principalID, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", principalID, err)
		}

		gotID, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}

		if gotID != principalID {
			t.Errorf("Verify() = %q, want %q", gotID, principalID)
		}
	}
}

func TestAPIKeySet(t *testing.T) {
	keys := NewAPIKeySet([]string{"alpha", "", "bravo"})

	if keys.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", keys.Len())
	}

	id, err := keys.Verify("bravo")
	if err != nil {
		t.Fatalf("Verify(bravo) error = %v", err)
	}
	if id != "api-key-2" {
		t.Errorf("Verify(bravo) = %q, want api-key-2", id)
	}

	for _, bad := range []string{"", "alph", "alphaa", "charlie"} {
		if _, err := keys.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", bad, err)
		}
	}
}
