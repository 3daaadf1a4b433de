// ABOUTME: HS256 JWT minting and verification for gateway-issued tokens
// ABOUTME: Used when auth.jwt_secret is configured; opaque tokens otherwise

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token expired")
	ErrMissingCredential = errors.New("missing credential")
	ErrSecretTooShort    = errors.New("jwt secret must be at least 32 bytes")
)

// MinSecretLength is the minimum accepted HS256 secret length in bytes.
const MinSecretLength = 32

// JWTSigner mints and verifies HS256 signed tokens for issued credentials.
type JWTSigner struct {
	secret []byte
}

// NewJWTSigner creates a signer with the given secret.
func NewJWTSigner(secret []byte) (*JWTSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	return &JWTSigner{secret: secret}, nil
}

// Mint creates a token for the given client with the given scope and TTL.
func (s *JWTSigner) Mint(clientID, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   clientID,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates a token and returns the subject and scope claims.
func (s *JWTSigner) Verify(tokenString string) (subject, scope string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrExpiredToken
		}
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	sc, _ := claims["scope"].(string)

	return sub, sc, nil
}
