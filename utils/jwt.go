package utils

import (
	"errors"
	"time"

	"rivelya/config"

	"github.com/golang-jwt/jwt/v4"
)

const devSecret = "rivelya-dev-secret"

// Claims identify the caller. Sub is the user id; ExpertID is set when the user acts as
// an expert.
type Claims struct {
	Role     string `json:"role,omitempty"`
	ExpertID string `json:"expertId,omitempty"`
	jwt.RegisteredClaims
}

func secretKey() []byte {
	if s := config.AppConfig.JWTSecret; s != "" {
		return []byte(s)
	}
	return []byte(devSecret)
}

// GenerateToken signs an access token for userID that expires after duration.
func GenerateToken(userID, role, expertID string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     role,
		ExpertID: expertID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey())
}

// ParseToken validates a token string and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token does not contain a valid 'sub' claim")
	}
	return claims, nil
}
