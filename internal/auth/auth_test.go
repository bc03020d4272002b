package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crowdfund-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "7a0d3f6e-4b1c-4e1f-9a2b-3c4d5e6f7a8b",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
}

func TestValidateToken(t *testing.T) {
	a := New(testSecret, observability.NewLogger())
	ctx := context.Background()

	token := signToken(t, testSecret, validClaims("admin"))
	claims, err := a.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Subject != "7a0d3f6e-4b1c-4e1f-9a2b-3c4d5e6f7a8b" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	a := New(testSecret, observability.NewLogger())

	claims := validClaims("")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	token := signToken(t, testSecret, claims)

	if _, err := a.ValidateToken(context.Background(), token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	a := New(testSecret, observability.NewLogger())

	token := signToken(t, "other-secret", validClaims(""))
	if _, err := a.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func newTestRouter(a Auth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", a.HandleJWTMiddleware, func(c *gin.Context) {
		userID, _ := c.Get("User-ID")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	router.GET("/admin", a.HandleJWTMiddleware, a.HandleAdminMiddleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestJWTMiddleware(t *testing.T) {
	a := New(testSecret, observability.NewLogger())
	router := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestJWTMiddlewareMissingToken(t *testing.T) {
	a := New(testSecret, observability.NewLogger())
	router := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdminMiddleware(t *testing.T) {
	a := New(testSecret, observability.NewLogger())
	router := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("admin")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin token: status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("contributor")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin token: status = %d", w.Code)
	}
}
