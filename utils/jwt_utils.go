package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cloudboard/api/models"
)

// TokenKind distinguishes tokens issued to people from tokens issued to sites.
type TokenKind string

const (
	KindUser   TokenKind = "user"
	KindDomain TokenKind = "domain"
)

// Claims embeds jwt.RegisteredClaims; Subject carries the user or domain id
// depending on Kind.
type Claims struct {
	Kind  TokenKind `json:"kind"`
	Email string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the numeric id stored in the subject claim.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// TokenManager signs and validates HS256 access tokens.
type TokenManager struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	domainTTL time.Duration
	now       func() time.Time
}

// NewTokenManager signs user and domain tokens with the same lifetime until
// WithDomainTTL says otherwise.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret:    []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		domainTTL: ttl,
		now:       time.Now,
	}
}

// WithDomainTTL sets the lifetime of domain tokens. Those are embedded in
// customer pages, so they usually outlive a dashboard session.
func (m *TokenManager) WithDomainTTL(ttl time.Duration) *TokenManager {
	if ttl > 0 {
		m.domainTTL = ttl
	}
	return m
}

// GenerateUserToken issues an access token for a logged-in user.
func (m *TokenManager) GenerateUserToken(user *models.User) (string, error) {
	return m.sign(KindUser, user.ID, user.Email, m.ttl)
}

// GenerateDomainToken issues an access token that lets a site post events.
func (m *TokenManager) GenerateDomainToken(domain *models.Domain) (string, error) {
	return m.sign(KindDomain, domain.ID, "", m.domainTTL)
}

func (m *TokenManager) sign(kind TokenKind, subject int64, email string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		Kind:  kind,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(subject, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate parses and validates a token string.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	switch claims.Kind {
	case KindUser, KindDomain:
	default:
		return nil, fmt.Errorf("invalid token: unknown kind %q", claims.Kind)
	}

	return claims, nil
}
