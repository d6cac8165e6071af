package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents admin API JWT claims.
type Claims struct {
	UserID  uint64 `json:"user_id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 tokens with one secret.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer decodes a base64 secret of at least 32 bytes. An empty
// secret generates a random one, so tokens do not survive a restart.
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	var key []byte
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return nil, fmt.Errorf("JWT secret must be base64: %w", err)
		}
		if len(decoded) < 32 {
			return nil, errors.New("secret key must be at least 32 bytes")
		}
		key = decoded
	}
	return &TokenIssuer{
		secret: key,
		expiry: 24 * time.Hour,
		issuer: "archipelo-server",
		now:    time.Now,
	}, nil
}

// Generate creates a signed token for the user.
func (ti *TokenIssuer) Generate(user *User) (string, error) {
	now := ti.now()
	claims := &Claims{
		UserID:  user.ID,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    ti.issuer,
			Subject:   user.Name,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Validate parses the token and returns its claims.
func (ti *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithIssuer(ti.issuer), jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecureSecret returns a random base64 secret for configuration files.
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
