package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crowdfund-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload issued for API users.
type Claims struct {
	ExpirationTime *jwt.NumericDate `json:"exp"`
	IssuedAt       *jwt.NumericDate `json:"iat"`
	NotBefore      *jwt.NumericDate `json:"nbf"`
	Issuer         string           `json:"iss"`
	Subject        string           `json:"sub"`
	Audience       jwt.ClaimStrings `json:"aud"`
	Role           string           `json:"role"`
}

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.ExpirationTime, nil
}

func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.IssuedAt, nil
}

func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return c.NotBefore, nil
}

func (c *Claims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c *Claims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c *Claims) GetAudience() (jwt.ClaimStrings, error) {
	return c.Audience, nil
}

// Auth validates bearer tokens and gates admin-only routes.
type Auth struct {
	jwtSecret string
	logger    *observability.Logger
}

func New(jwtSecret string, logger *observability.Logger) Auth {
	return Auth{
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func (a Auth) ValidateToken(ctx context.Context, token string) (Claims, error) {
	var claims Claims
	t, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			a.logger.Error(ctx, "token expired", err)
			return Claims{}, ErrExpiredToken
		}
		a.logger.Error(ctx, "failed to parse token", err)
		return Claims{}, ErrInvalidToken
	}
	if !t.Valid {
		return Claims{}, ErrInvalidToken
	}

	parsed, ok := t.Claims.(*Claims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return *parsed, nil
}

// HandleJWTMiddleware authenticates the request and stores the user id on the
// gin context under "User-ID".
func (a Auth) HandleJWTMiddleware(c *gin.Context) {
	ctx := c.Request.Context()
	tokenHeader := c.GetHeader("Authorization")

	if tokenHeader == "" || !strings.HasPrefix(tokenHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	tokenString := strings.TrimPrefix(tokenHeader, "Bearer ")

	claims, err := a.ValidateToken(ctx, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token subject is missing"})
		c.Abort()
		return
	}

	c.Set("User-ID", sub)
	c.Set("User-Role", claims.Role)
	c.Next()
}

// HandleAdminMiddleware allows only tokens carrying the admin role. It must
// run after HandleJWTMiddleware.
func (a Auth) HandleAdminMiddleware(c *gin.Context) {
	role, ok := c.Get("User-Role")
	if !ok || role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		c.Abort()
		return
	}
	c.Next()
}
