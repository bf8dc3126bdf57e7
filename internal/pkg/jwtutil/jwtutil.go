// Package jwtutil parses and issues the bearer tokens minted by the external
// auth collaborator. The token carries the full Principal: role, organization
// and project memberships.
package jwtutil

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"knowledgehub/internal/access"
)

type Claims struct {
	UserID   uint                       `json:"user_id"`
	AppRole  string                     `json:"app_role"`
	OrgID    *uint                      `json:"org_id,omitempty"`
	Projects []access.ProjectMembership `json:"projects,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts the verified claims into the resolver's input.
func (c *Claims) Principal() access.Principal {
	return access.Principal{
		UserID:   c.UserID,
		AppRole:  access.AppRole(c.AppRole),
		OrgID:    c.OrgID,
		Projects: c.Projects,
	}
}

// GenerateToken signs a token for the given principal. Used by tests and by
// operators minting service tokens; production tokens come from the auth
// collaborator with the same claim shape.
func GenerateToken(secret string, expire time.Duration, p access.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   p.UserID,
		AppRole:  string(p.AppRole),
		OrgID:    p.OrgID,
		Projects: p.Projects,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token failed: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !access.AppRole(claims.AppRole).Valid() {
		return nil, fmt.Errorf("unknown app role %q", claims.AppRole)
	}
	return claims, nil
}
