package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret-key-for-jwt-signing"

	token, err := GenerateToken("kitchen-tablet", RoleOperator, secret, 60)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "kitchen-tablet" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "kitchen-tablet")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if claims.Issuer != "hearth" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestGenerateToken_Errors(t *testing.T) {
	if _, err := GenerateToken("x", RoleViewer, "", 10); !errors.Is(err, ErrNoSecret) {
		t.Errorf("empty secret error = %v, want ErrNoSecret", err)
	}
	if _, err := GenerateToken("x", Role("root"), "secret", 10); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("bad role error = %v, want ErrInvalidRole", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("cli", RoleViewer, "correct-secret", 15)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := ParseToken(token, "wrong-secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	secret := "secret"
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "cli",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: RoleViewer,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	if _, err := ParseToken(token, secret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(expired) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_MissingFields(t *testing.T) {
	secret := "secret"
	tests := []struct {
		name   string
		claims Claims
	}{
		{"no subject", Claims{Role: RoleViewer}},
		{"unknown role", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "cli"}, Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte(secret))
			if err != nil {
				t.Fatalf("signing: %v", err)
			}
			if _, err := ParseToken(token, secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_Malformed(t *testing.T) {
	for _, raw := range []string{"", "abc.def", "not-a-valid-jwt"} {
		if _, err := ParseToken(raw, "secret"); err == nil {
			t.Errorf("ParseToken(%q) should fail", raw)
		}
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	token, err := GenerateToken("cli", RoleViewer, "secret", 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(24 * time.Hour))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~24 hours, got expiry diff of %v", diff)
	}
}
