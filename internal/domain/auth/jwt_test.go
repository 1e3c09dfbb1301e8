package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "pharmadesk/internal/core/context"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(testSecret, "pharmadesk"))

	token, expiresAt, err := svc.GenerateAccessToken(appctx.UserContext{
		UserID:     "u-1",
		PharmacyID: "ph-1",
		Email:      "clerk@example.com",
		Roles:      []string{"billing"},
	})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "ph-1", user.PharmacyID)
	assert.Equal(t, []string{"billing"}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(testSecret, "pharmadesk"))

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "pharmadesk",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			UserID:     "u-1",
			PharmacyID: "ph-1",
		}
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"garbage", func(*testing.T) string { return "not-a-token" }},
		{"wrong secret", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), valid())
		}},
		{"expired", func(t *testing.T) string {
			c := valid()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"wrong issuer", func(t *testing.T) string {
			c := valid()
			c.Issuer = "someone-else"
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"wrong algorithm", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid())
		}},
		{"no pharmacy", func(t *testing.T) string {
			c := valid()
			c.PharmacyID = ""
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token(t))
			assert.Error(t, err)
		})
	}
}
