package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := Claims{ExpiresAt: now.Add(time.Minute).Unix()}
	assert.False(t, c.Expired(now))

	c.ExpiresAt = now.Add(-time.Minute).Unix()
	assert.True(t, c.Expired(now))

	// Expiry exactly at the current second is still valid
	c.ExpiresAt = now.Unix()
	assert.False(t, c.Expired(now))
}

func TestPrincipalRoundTrip(t *testing.T) {
	oidc := &OIDCPrincipal{
		Claims:       Claims{Subject: "sub-1", Email: "a@b.com", ExpiresAt: 1700000000},
		AccessToken:  "at",
		RefreshToken: "rt",
	}

	data, err := MarshalPrincipal(oidc)
	require.NoError(t, err)

	decoded, err := UnmarshalPrincipal(data)
	require.NoError(t, err)
	got, ok := decoded.(*OIDCPrincipal)
	require.True(t, ok)
	assert.Equal(t, oidc.Claims, got.Claims)
	assert.Equal(t, "rt", got.RefreshToken)

	dev := &DevPrincipal{ID: "u1", Email: "dev@example.com"}
	data, err = MarshalPrincipal(dev)
	require.NoError(t, err)

	decoded, err = UnmarshalPrincipal(data)
	require.NoError(t, err)
	gotDev, ok := decoded.(*DevPrincipal)
	require.True(t, ok)
	assert.Equal(t, "u1", gotDev.Subject())
}

func TestUnmarshalPrincipal_UnknownKind(t *testing.T) {
	_, err := UnmarshalPrincipal([]byte(`{"kind":"saml","data":{}}`))
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", hash)

	assert.True(t, CheckPassword(hash, "s3cret-password"))
	assert.False(t, CheckPassword(hash, "different"))
}
