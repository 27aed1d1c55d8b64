// Package auth validates bearer tokens issued by the identity provider and
// turns them into request principals.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the only token type accepted by the API.
const TokenTypeAccess = "access"

// AccessTokenExpiry is the lifetime of tokens minted by GenerateAccessToken.
const AccessTokenExpiry = 15 * time.Minute

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrInvalidSubject is returned when the subject is not a UUID.
var ErrInvalidSubject = errors.New("subject must be a UUID")

// Identity is what the identity provider asserts about the caller.
// Role is only a provisioning hint; the stored profile is authoritative.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    string
}

// Claims represents custom JWT claims for the application.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"typ"`
}

// Identity extracts the caller identity from validated claims.
func (c *Claims) Identity() Identity {
	return Identity{
		Subject: c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Role:    c.Role,
	}
}

// JWTService handles JWT token operations.
// Supports dual-key rotation: tokens are signed with currentSecret,
// but can be validated with either currentSecret or previousSecret.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewJWTService creates a new JWTService with the given secret.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(secret, "", DefaultLeeway)
}

// NewJWTServiceWithRotation creates a JWTService that also accepts tokens
// signed with previousSecret. Pass "" when no rotation is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(currentSecret, previousSecret, DefaultLeeway)
}

// NewJWTServiceWithRotationAndLeeway creates a new JWTService with dual-key support and custom leeway.
func NewJWTServiceWithRotationAndLeeway(currentSecret, previousSecret string, leeway time.Duration) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        leeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// GenerateAccessToken mints an access token for id. Production tokens come
// from the identity provider; this exists for local tooling and tests.
func (s *JWTService) GenerateAccessToken(id Identity) (string, error) {
	if _, err := uuid.Parse(id.Subject); err != nil {
		return "", ErrInvalidSubject
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		Type:  TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates an access token, returning the claims if valid.
// Supports dual-key rotation: tries currentSecret first, then previousSecret if available.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Type != TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidSubject
	}
	// Profiles are keyed by the canonical form; braces, urn prefixes and
	// upper case would never match a stored row.
	claims.Subject = subject.String()
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
