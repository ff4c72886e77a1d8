package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen is the shortest HS256 secret the server accepts.
const minSecretLen = 32

type keyClaims struct {
	AppID string `json:"appId"`
	jwt.RegisteredClaims
}

// issueKey signs an access key for an authenticated author.
func issueKey(secret []byte, appID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &keyClaims{
		AppID: appID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("devserver: sign key: %w", err)
	}
	return signed, nil
}

// validateKey parses a key and checks it belongs to appID. The signing
// method is pinned to HS256 to prevent algorithm confusion.
func validateKey(secret []byte, appID, tokenStr string) (*keyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &keyClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*keyClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid key")
	}
	if claims.AppID != appID {
		return nil, errors.New("key issued for another application")
	}
	return claims, nil
}
