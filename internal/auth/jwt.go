package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/filmbilling/internal/config"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidConfig   = errors.New("invalid_auth_config")
)

// Claims are issued by the auth service. UserID is the only field billing
// relies on; roles gate the admin routes.
type Claims struct {
	UserID string   `json:"user_id"`
	Login  string   `json:"login"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *Claims) UserUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.UserID))
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

type Verifier struct {
	key    []byte
	method jwt.SigningMethod
}

func NewVerifier(cfg config.Config) (*Verifier, error) {
	method := jwt.GetSigningMethod(cfg.Auth.JWTAlgorithm)
	if method == nil {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfig, cfg.Auth.JWTAlgorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: only HMAC algorithms are supported", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("%w: jwt secret is empty", ErrInvalidConfig)
	}
	return &Verifier{key: []byte(cfg.Auth.JWTSecret), method: method}, nil
}

// Parse validates the signature, algorithm and expiry of a bearer token.
func (v *Verifier) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}
	if _, err := claims.UserUUID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Sign issues a token with the configured key. Used by local tooling and tests.
func (v *Verifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(v.method, claims).SignedString(v.key)
}
