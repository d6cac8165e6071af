package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	secret, err := GenerateSecureSecret()
	require.NoError(t, err)
	ti, err := NewTokenIssuer(secret)
	require.NoError(t, err)
	return ti
}

// TestGenerateJWT тестирует создание JWT токена
func TestGenerateJWT(t *testing.T) {
	ti := newIssuer(t)
	token, err := ti.Generate(&User{ID: 1, Name: "testuser"})
	require.NoError(t, err, "Ошибка генерации JWT")
	assert.Equal(t, 2, strings.Count(token, "."), "Неверный формат JWT токена")
}

// TestValidateJWT тестирует валидацию JWT токена
func TestValidateJWT(t *testing.T) {
	ti := newIssuer(t)
	user := &User{ID: 42, Name: "validuser", IsAdmin: true}

	token, err := ti.Generate(user)
	require.NoError(t, err)

	claims, err := ti.Validate(token)
	require.NoError(t, err, "Валидный токен определен как недействительный")
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "validuser", claims.Name)
	assert.True(t, claims.IsAdmin)
}

// TestValidateInvalidJWT тестирует валидацию недействительных токенов
func TestValidateInvalidJWT(t *testing.T) {
	ti := newIssuer(t)
	for _, invalid := range []string{
		"invalid.token.here",
		"",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		_, err := ti.Validate(invalid)
		assert.ErrorIs(t, err, ErrInvalidToken, "Недействительный токен %q прошел валидацию", invalid)
	}

	t.Run("Foreign secret", func(t *testing.T) {
		token, err := newIssuer(t).Generate(&User{ID: 1, Name: "x"})
		require.NoError(t, err)
		_, err = ti.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := ti.Generate(&User{ID: 1, Name: "x"})
		require.NoError(t, err)
		ti.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
		defer func() { ti.now = time.Now }()
		_, err = ti.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

// TestNewTokenIssuer тестирует разбор секретного ключа
func TestNewTokenIssuer(t *testing.T) {
	secret1, err := GenerateSecureSecret()
	require.NoError(t, err)
	secret2, err := GenerateSecureSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret1, secret2)
	assert.GreaterOrEqual(t, len(secret1), 40, "Секрет слишком короткий")

	_, err = NewTokenIssuer(secret1)
	assert.NoError(t, err)

	for _, invalid := range []string{"too-short", "invalid-base64-@#$%", "c2hvcnQ="} {
		_, err := NewTokenIssuer(invalid)
		assert.Error(t, err, "Недействительный секрет %q был принят", invalid)
	}

	random, err := NewTokenIssuer("")
	require.NoError(t, err)
	assert.Len(t, random.secret, 32)
}
