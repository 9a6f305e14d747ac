package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-boxoffice/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns a bearer token into the caller's principal.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (models.Principal, error)
}

// Claims is the token body issued by the identity service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, rawToken string) (models.Principal, error) {
	if rawToken == "" {
		return models.Principal{}, errors.New("empty token")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, fmt.Errorf("failed to parse token: %w", err)
	}

	return principalFromClaims(claims.Subject, claims.Role)
}

func principalFromClaims(sub, role string) (models.Principal, error) {
	if sub == "" {
		return models.Principal{}, errors.New("subject claim not found in token")
	}
	p := models.Principal{ID: sub, Role: models.RoleUser}
	if strings.EqualFold(role, string(models.RoleAdmin)) {
		p.Role = models.RoleAdmin
	}
	return p, nil
}
