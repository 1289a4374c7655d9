package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
)

var (
	jwtService = NewJWTService("test-signing-key", "test-issuer", "test-audience")
	userID     = id.UserID(uuid.New())
	expiresIn  = time.Hour
)

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, id.RoleAdmin, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, id.RoleUser, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", err.Error())
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "another-audience")
	token, err := other.GenerateAccessToken(userID, id.RoleUser, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsUnsignedTokens(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			Issuer:   "test-issuer",
			Audience: []string{"test-audience"},
		},
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Adapter(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	t.Run("maps subject and role", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(userID, id.RoleUser, expiresIn)
		require.NoError(t, err)
		actor, err := adapter.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, actor.UserID)
		assert.Equal(t, id.RoleUser, actor.Role)
	})

	t.Run("unknown role degrades to user", func(t *testing.T) {
		actor, err := ToActor(&Claims{Role: "superuser", RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}})
		require.NoError(t, err)
		assert.Equal(t, id.RoleUser, actor.Role)
	})

	t.Run("non uuid subject is rejected", func(t *testing.T) {
		_, err := ToActor(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
