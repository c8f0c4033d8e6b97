package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"finpanel/internal/actor"
)

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": actor.ID(c.Request.Context())})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid_token_sets_actor", func(t *testing.T) {
		token, err := GenerateAccessToken("actor-1", "Ana")
		if err != nil {
			t.Fatalf("GenerateAccessToken: %v", err)
		}

		rec := doRequest(setupAuthRouter(), "Authorization", "Bearer "+token)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if got, _ := parseBody(t, rec)["actor"].(string); got != "actor-1" {
			t.Errorf("actor = %q, want actor-1", got)
		}
	})

	t.Run("missing_header", func(t *testing.T) {
		rec := doRequest(setupAuthRouter(), "Authorization", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if code := errorCode(t, rec); code != "UNAUTHORIZED" {
			t.Errorf("error code = %q, want UNAUTHORIZED", code)
		}
	})

	t.Run("malformed_header", func(t *testing.T) {
		rec := doRequest(setupAuthRouter(), "Authorization", "Token abc")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage_token", func(t *testing.T) {
		rec := doRequest(setupAuthRouter(), "Authorization", "Bearer not-a-jwt")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("expired_token", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		claims := &JWTClaims{
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(past),
				IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
				Issuer:    tokenIssuer,
				Subject:   "actor-1",
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(getJWTKey())
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		rec := doRequest(setupAuthRouter(), "Authorization", "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong_secret", func(t *testing.T) {
		claims := &JWTClaims{
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    tokenIssuer,
				Subject:   "actor-1",
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		rec := doRequest(setupAuthRouter(), "Authorization", "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}
