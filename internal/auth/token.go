package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-contacts-api/internal/model"
)

type Scope string

const (
	ScopeAccess  Scope = "access_token"
	ScopeRefresh Scope = "refresh_token"
)

type tokenClaims struct {
	Scope Scope `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the three token kinds. Access and refresh
// tokens carry a scope claim; email confirmation tokens carry none.
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
	now        func() time.Time
}

func NewTokenCodec(secret string, algorithm string, accessTTL time.Duration, refreshTTL time.Duration, emailTTL time.Duration) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}

	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &TokenCodec{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		emailTTL:   emailTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and validating.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *TokenCodec) Issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	now := c.now()
	claims := tokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (c *TokenCodec) IssueAccess(subject string) (string, error) {
	return c.Issue(subject, ScopeAccess, c.accessTTL)
}

func (c *TokenCodec) IssueRefresh(subject string) (string, error) {
	return c.Issue(subject, ScopeRefresh, c.refreshTTL)
}

// IssuePair mints a fresh access and refresh token for subject.
func (c *TokenCodec) IssuePair(subject string) (model.TokenPair, error) {
	access, err := c.IssueAccess(subject)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := c.IssueRefresh(subject)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(c.accessTTL.Seconds()),
	}, nil
}

// Parse verifies raw and returns its subject. Expiry is only reported for
// tokens whose signature checks out.
func (c *TokenCodec) Parse(raw string, expected Scope) (string, error) {
	claims, err := c.decode(raw)
	if err != nil {
		return "", err
	}

	if claims.Scope != expected {
		return "", fmt.Errorf("%w: want %s, got %q", model.ErrScopeMismatch, expected, claims.Scope)
	}

	return claims.Subject, nil
}

func (c *TokenCodec) IssueEmailToken(subject string) (string, error) {
	return c.Issue(subject, "", c.emailTTL)
}

// ParseEmailToken accepts only unscoped tokens; every failure is
// ErrInvalidToken.
func (c *TokenCodec) ParseEmailToken(raw string) (string, error) {
	claims, err := c.decode(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	if claims.Scope != "" {
		return "", fmt.Errorf("%w: scoped token used for email verification", model.ErrInvalidToken)
	}

	return claims.Subject, nil
}

func (c *TokenCodec) decode(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimSpace(raw),
		claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", model.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", model.ErrInvalidToken)
	}

	return claims, nil
}
