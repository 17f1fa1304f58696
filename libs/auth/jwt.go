package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Roles carried in the "role" claim.
const (
	RoleCustomer = "customer"
	RoleOwner    = "owner"
)

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// KeySource resolves RS256 public keys by key id.
type KeySource interface {
	Keyfunc(token *jwt.Token) (any, error)
}

// Verifier accepts HS256 tokens signed with Secret and, when Keys is set,
// RS256 tokens whose kid resolves through Keys.
type Verifier struct {
	Secret string
	Keys   KeySource
	Leeway time.Duration
}

func (v Verifier) Verify(token string) (*Claims, error) {
	var methods []string
	if v.Secret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if v.Keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no verification key configured", ErrInvalidToken)
	}

	leeway := v.Leeway
	if leeway == 0 {
		leeway = 5 * time.Second
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyfunc,
		jwt.WithValidMethods(methods),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (v Verifier) keyfunc(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return []byte(v.Secret), nil
	case *jwt.SigningMethodRSA:
		return v.Keys.Keyfunc(t)
	default:
		return nil, jwt.ErrTokenUnverifiable
	}
}

// SignHS256 issues a token for userID; used by tests and local tooling.
func SignHS256(userID, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
