// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"studio-notify/internal/domain/identity"
	xerrors "studio-notify/internal/pkg/errors"
)

// Verifier decodes access tokens. Without a public key it only decodes the
// claims and leaves validity to the backend. Expiry is never enforced here:
// an expired token is refreshed by the REST client on its first 401.
type Verifier struct {
	pub      *rsa.PublicKey
	issuer   string
	audience string
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub:      pub,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify parses a token and returns its claims
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	if v.pub == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidToken, err)
		}
	} else {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
			jwt.WithoutClaimsValidation(),
		)
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return v.pub, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidToken, err)
		}
		if !token.Valid {
			return nil, xerrors.ErrInvalidToken
		}
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected issuer %s, got %s", xerrors.ErrInvalidToken, v.issuer, claims.Issuer)
	}

	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("%w: invalid audience", xerrors.ErrInvalidToken)
	}

	return claims, nil
}

// Identity verifies the token and returns the identity it was issued to.
func (v *Verifier) Identity(tokenString string) (identity.Identity, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return identity.Identity{}, err
	}

	id := claims.Identity()
	if id.UserID == "" || id.Role == "" {
		return identity.Identity{}, fmt.Errorf("%w: token carries no user id or role", xerrors.ErrInvalidToken)
	}
	return id, nil
}
