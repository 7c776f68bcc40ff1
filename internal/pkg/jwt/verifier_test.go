package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-notify/internal/domain/identity"
	xerrors "studio-notify/internal/pkg/errors"
)

func hsToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return s
}

func rsToken(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestDecodeOnlyIdentity(t *testing.T) {
	v := NewVerifier(nil, "", "")

	token := hsToken(t, &Claims{UserID: "u1", Role: "studio", StudioID: "S1"})
	id, err := v.Identity(token)

	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "u1", Role: identity.RoleStudio, StudioID: "S1"}, id)
}

func TestIdentityFallbacks(t *testing.T) {
	v := NewVerifier(nil, "", "")

	id, err := v.Identity(hsToken(t, &Claims{AltID: "u2", Roles: []string{"admin", "client"}}))
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
	assert.Equal(t, identity.RoleAdmin, id.Role)

	id, err = v.Identity(hsToken(t, &Claims{Role: "client", RegisteredClaims: jwt.RegisteredClaims{Subject: "u3"}}))
	require.NoError(t, err)
	assert.Equal(t, "u3", id.UserID)
}

func TestIdentityRequiresUserAndRole(t *testing.T) {
	v := NewVerifier(nil, "", "")

	_, err := v.Identity(hsToken(t, &Claims{UserID: "u1"}))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	_, err = v.Identity(hsToken(t, &Claims{Role: "client"}))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	_, err = v.Identity("not-a-jwt")
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestExpiredTokenStillYieldsIdentity(t *testing.T) {
	v := NewVerifier(nil, "", "")

	token := hsToken(t, &Claims{UserID: "u1", Role: "client", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})

	id, err := v.Identity(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestVerifyWithPublicKey(t *testing.T) {
	key := rsaKey(t)
	v := NewVerifier(&key.PublicKey, "studio-api", "studio-web")

	good := &Claims{UserID: "u1", Role: "client", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "studio-api",
		Audience:  jwt.ClaimStrings{"studio-web"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}

	id, err := v.Identity(rsToken(t, key, good))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	_, err = v.Identity(rsToken(t, rsaKey(t), good))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken, "signed by another key")

	_, err = v.Identity(hsToken(t, good))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken, "HMAC is not accepted with a public key")

	wrongIssuer := *good
	wrongIssuer.Issuer = "elsewhere"
	_, err = v.Identity(rsToken(t, key, &wrongIssuer))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	wrongAudience := *good
	wrongAudience.Audience = jwt.ClaimStrings{"admin-console"}
	_, err = v.Identity(rsToken(t, key, &wrongAudience))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestParseRSAPublicKeyFromPEM(t *testing.T) {
	key := rsaKey(t)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pkix := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	parsed, err := ParseRSAPublicKeyFromPEM(pkix)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	parsed, err = ParseRSAPublicKeyFromPEM(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))

	_, err = ParseRSAPublicKeyFromPEM([]byte("garbage"))
	assert.Error(t, err)
}

func TestLoadWithoutPathMeansDecodeOnly(t *testing.T) {
	key, err := LoadRSAPublicKeyFromPEM("")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestTokenStore(t *testing.T) {
	s := NewTokenStore("a")
	assert.Equal(t, "a", s.Token())

	s.SetToken("b")
	assert.Equal(t, "b", s.Token())

	s.Clear()
	assert.Empty(t, s.Token())
}
