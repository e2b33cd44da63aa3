package auth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sigma-quiz-service/internal/domain"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient role")
)

// Claims identify an operator and the roles they act under.
type Claims struct {
	Roles []domain.Role `json:"roles"`
	jwt.RegisteredClaims
}

// Has reports whether the claims carry any of roles.
func (c *Claims) Has(roles ...domain.Role) bool {
	for _, r := range roles {
		if slices.Contains(c.Roles, r) {
			return true
		}
	}
	return false
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

func NewIssuer(secret, issuer string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, clock: time.Now}, nil
}

// Issue signs a token for subject valid for ttl.
func (i *Issuer) Issue(subject string, roles []domain.Role, ttl time.Duration) (string, error) {
	for _, r := range roles {
		if !r.Valid() {
			return "", fmt.Errorf("unknown role %q", r)
		}
	}
	now := i.clock()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses raw and checks signature, expiry and issuer.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := new(Claims)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// FromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter used by websocket clients.
func FromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
			return tok, nil
		}
		return "", ErrNoToken
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return fields[1], nil
}
