// apps/go-server/internal/auth/token.go
//
// Signed room tokens: the authoritative connection-identity mapping.
// The HTTP layer issues a token at admission (create/join); the websocket
// layer verifies it on subscribe and derives (roomId, playerId) from the
// claims instead of trusting anything the client sends alongside.

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a connection to an admitted player in one room.
type Claims struct {
	RoomID   string
	PlayerID string
}

// ErrInvalidToken covers expired, malformed, or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Sign creates an HS256 token carrying the room/player identity.
func Sign(secret []byte, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room":   c.RoomID,
		"player": c.PlayerID,
		"exp":    now.Add(ttl).Unix(),
		"iat":    now.Unix(),
	})
	return token.SignedString(secret)
}

// Verify parses and validates a token, returning its identity claims.
func Verify(secret []byte, tokenStr string) (Claims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	room, _ := claims["room"].(string)
	player, _ := claims["player"].(string)
	if room == "" || player == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{RoomID: room, PlayerID: player}, nil
}
