package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fieldops/maintenance-visits/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       uuid.New().String(),
		"tenant_id": uuid.New().String(),
		"branch_id": uuid.New().String(),
		"role":      "MANAGER",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
}

func TestParseValidToken(t *testing.T) {
	parser := NewParser(testSecret)
	claims := validClaims()

	principal, err := parser.Parse(signToken(t, testSecret, claims))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if principal.Role != model.RoleManager {
		t.Fatalf("role = %s, want MANAGER", principal.Role)
	}
	if principal.UserID.String() != claims["sub"] {
		t.Fatal("user id mismatch")
	}
	if principal.TenantID.String() != claims["tenant_id"] || principal.BranchID.String() != claims["branch_id"] {
		t.Fatal("scope mismatch")
	}
}

func TestParseRejects(t *testing.T) {
	parser := NewParser(testSecret)

	cases := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", validClaims())},
		{"garbage", "not.a.token"},
		{"expired", signToken(t, testSecret, func() jwt.MapClaims {
			claims := validClaims()
			claims["exp"] = time.Now().Add(-time.Hour).Unix()
			return claims
		}())},
		{"unknown role", signToken(t, testSecret, func() jwt.MapClaims {
			claims := validClaims()
			claims["role"] = "ADMIN"
			return claims
		}())},
		{"missing tenant", signToken(t, testSecret, func() jwt.MapClaims {
			claims := validClaims()
			delete(claims, "tenant_id")
			return claims
		}())},
		{"non-uuid subject", signToken(t, testSecret, func() jwt.MapClaims {
			claims := validClaims()
			claims["sub"] = "user-42"
			return claims
		}())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parser.Parse(tc.token); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}
