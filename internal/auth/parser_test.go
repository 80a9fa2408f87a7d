package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aselim/homecare-contracts/internal/model"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	parser := NewParser("test-secret")
	userID := uuid.New()

	tokenString := signToken(t, "test-secret", Claims{
		UserID: userID.String(),
		Name:   "Aigerim",
		Role:   "OPERATOR",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	principal, err := parser.Parse(tokenString)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if principal.UserID != userID {
		t.Errorf("user id = %s, want %s", principal.UserID, userID)
	}
	if principal.Role != model.RoleOperator {
		t.Errorf("role = %s, want OPERATOR", principal.Role)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	parser := NewParser("test-secret")
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong secret",
			token: signToken(t, "other-secret", Claims{UserID: uuid.NewString(), Role: "ADMIN", RegisteredClaims: valid}),
		},
		{
			name: "expired",
			token: signToken(t, "test-secret", Claims{
				UserID: uuid.NewString(),
				Role:   "ADMIN",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				},
			}),
		},
		{
			name:  "unknown role",
			token: signToken(t, "test-secret", Claims{UserID: uuid.NewString(), Role: "ROOT", RegisteredClaims: valid}),
		},
		{
			name:  "missing user id",
			token: signToken(t, "test-secret", Claims{Role: "ADMIN", RegisteredClaims: valid}),
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.token); err == nil {
				t.Fatal("expected parse to fail")
			}
		})
	}
}
