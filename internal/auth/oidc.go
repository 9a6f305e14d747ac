package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"ms-boxoffice/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier validates tokens against an OpenID Connect issuer. The role is
// read from a top-level "role" claim or from Keycloak-style realm roles.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		// Access tokens carry no client audience.
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (models.Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.Principal{}, fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Sub         string `json:"sub"`
		Role        string `json:"role"`
		RealmAccess struct {
			Roles []string `json:"roles"`
		} `json:"realm_access"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Principal{}, fmt.Errorf("failed to parse claims: %w", err)
	}

	role := claims.Role
	if slices.ContainsFunc(claims.RealmAccess.Roles, func(r string) bool {
		return strings.EqualFold(r, string(models.RoleAdmin))
	}) {
		role = string(models.RoleAdmin)
	}
	return principalFromClaims(claims.Sub, role)
}
