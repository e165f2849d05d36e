// Package auth issues and verifies the HS256 bearer tokens that identify the
// owner of every ledger request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

const issuer = "finledger"

// Issue signs a token whose subject is ownerID.
func Issue(secret string, ownerID int64, ttl time.Duration) (string, error) {
	if ownerID <= 0 {
		return "", fmt.Errorf("owner id must be positive, got %d", ownerID)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(ownerID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse verifies tokenStr and returns the owner id in its subject.
func Parse(secret, tokenStr string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}
	ownerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not an owner id", ErrInvalidToken, claims.Subject)
	}
	return ownerID, nil
}

// FromHeader extracts the token from an "Authorization: Bearer <token>"
// header value.
func FromHeader(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}

type ownerKey struct{}

func WithOwner(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom returns the authenticated owner stored by WithOwner.
func OwnerFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ownerKey{}).(int64)
	return id, ok && id > 0
}
