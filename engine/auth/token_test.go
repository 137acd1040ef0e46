package auth_test

import (
	"testing"
	"time"

	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	t.Run("Should round-trip a user ID through issue and verify", func(t *testing.T) {
		manager := auth.NewTokenManager("test-secret", time.Hour)
		userID := core.MustNewID()
		token, err := manager.Issue(userID)
		require.NoError(t, err)
		got, err := manager.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})
	t.Run("Should reject an expired token", func(t *testing.T) {
		manager := auth.NewTokenManager("test-secret", -time.Minute)
		token, err := manager.Issue(core.MustNewID())
		require.NoError(t, err)
		_, err = manager.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
	t.Run("Should reject a token signed with another secret", func(t *testing.T) {
		issuer := auth.NewTokenManager("secret-a", time.Hour)
		verifier := auth.NewTokenManager("secret-b", time.Hour)
		token, err := issuer.Issue(core.MustNewID())
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
	t.Run("Should reject garbage input", func(t *testing.T) {
		manager := auth.NewTokenManager("test-secret", time.Hour)
		_, err := manager.Verify("not.a.token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
