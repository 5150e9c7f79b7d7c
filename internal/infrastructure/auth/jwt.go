// Package auth validates access tokens issued by the identity provider.
// The engine never logs anyone in; it only needs to know who is calling and
// what they may do.
package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
)

// Permissions checked by the HTTP layer
const (
	PermissionStockAdjust = "stock:adjust"
	PermissionStockAdmin  = "stock:admin"
	PermissionStockReport = "stock:report"
)

const tokenTypeAccess = "access"

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Claims is the subset of the identity provider's access token the engine reads
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"token_type"`
}

// HasPermission reports whether the token grants permission.
// stock:admin implies every stock permission.
func (c *Claims) HasPermission(permission string) bool {
	return slices.Contains(c.Permissions, permission) || slices.Contains(c.Permissions, PermissionStockAdmin)
}

// ActorID identifies the caller in audit records
func (c *Claims) ActorID() string {
	if c.Username != "" {
		return c.Username
	}
	return c.UserID
}

// JWTService validates HS256 access tokens
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService creates a validator for cfg
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// ValidateAccessToken parses tokenString and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != "" && claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// IssueInput describes a token for IssueAccessToken
type IssueInput struct {
	UserID      string
	Username    string
	Permissions []string
	TTL         time.Duration
}

// IssueAccessToken signs a token the way the identity provider does. Used by
// tests and local tooling.
func (s *JWTService) IssueAccessToken(in IssueInput) (string, error) {
	now := time.Now()
	ttl := in.TTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   in.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:      in.UserID,
		Username:    in.Username,
		Permissions: in.Permissions,
		TokenType:   tokenTypeAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
