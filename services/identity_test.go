package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/techagentng/collabhub/errors"
)

func TestJWTIdentityRoundTrip(t *testing.T) {
	id := NewJWTIdentity("s3cret")
	token, err := id.Issue("influencer-001", time.Hour)
	require.NoError(t, err)

	uid, err := id.CurrentUser(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "influencer-001", uid)
}

func TestJWTIdentityRejectsBadTokens(t *testing.T) {
	id := NewJWTIdentity("s3cret")
	ctx := context.Background()

	other, err := NewJWTIdentity("different").Issue("u", time.Hour)
	require.NoError(t, err)
	expired, err := id.Issue("u", -time.Minute)
	require.NoError(t, err)
	anonymous, err := id.Issue("", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": other,
		"expired":      expired,
		"no subject":   anonymous,
	} {
		_, err := id.CurrentUser(ctx, token)
		assert.ErrorIs(t, err, errs.ErrUnauthorized, name)
	}
}
