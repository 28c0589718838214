package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const roomTokenTTL = 24 * time.Hour

// RoomTokenClaims identifies one participant of one pairing.
type RoomTokenClaims struct {
	PairId string `json:"pairId"`
	RoomId string `json:"roomId"`
	UserId string `json:"userId"`
	jwt.RegisteredClaims
}

// GenerateRoomToken signs an HS256 token handed to a paired participant.
func GenerateRoomToken(pairId, roomId, userId string, secret []byte) (string, error) {
	now := time.Now()
	claims := RoomTokenClaims{
		PairId: pairId,
		RoomId: roomId,
		UserId: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(roomTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateRoomToken parses a token produced by GenerateRoomToken.
func ValidateRoomToken(tokenString string, secret []byte) (*RoomTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RoomTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return token.Claims.(*RoomTokenClaims), nil
}
